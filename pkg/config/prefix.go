package config

// PrefixConfig holds configurable mount points for the service's route groups.
//
// Example environment variables:
//
//	API_PREFIX_DEVICE=/api/v1/device
//	API_PREFIX_METRICS=/metrics
type PrefixConfig struct {
	Device  string // Verification endpoints (/, /verify, /stats)
	Metrics string // Prometheus scrape endpoint
}

// DefaultPrefixes mounts the verification routes at the root
func DefaultPrefixes() PrefixConfig {
	return PrefixConfig{
		Device:  "/",
		Metrics: "/metrics",
	}
}

// BuildPrefixesFromBase builds prefix configuration from a base path.
//
//	BuildPrefixesFromBase("/api/v1")
//	// PrefixConfig{Device: "/api/v1/device", Metrics: "/api/v1/metrics"}
func BuildPrefixesFromBase(basePath string) PrefixConfig {
	// Remove trailing slash if present
	if len(basePath) > 0 && basePath[len(basePath)-1] == '/' {
		basePath = basePath[:len(basePath)-1]
	}

	return PrefixConfig{
		Device:  basePath + "/device",
		Metrics: basePath + "/metrics",
	}
}

// LoadPrefixConfig loads prefix configuration from environment variables.
//
// Configuration priority (highest to lowest):
//  1. Individual API_PREFIX_* overrides
//  2. API_PREFIX_BASE: Base path for all endpoints
//  3. DefaultPrefixes
func LoadPrefixConfig() PrefixConfig {
	defaults := DefaultPrefixes()
	if basePath := GetEnv("API_PREFIX_BASE"); basePath != "" {
		defaults = BuildPrefixesFromBase(basePath)
	}

	return PrefixConfig{
		Device:  GetEnvOrDefault("API_PREFIX_DEVICE", defaults.Device),
		Metrics: GetEnvOrDefault("API_PREFIX_METRICS", defaults.Metrics),
	}
}

// Validate checks that all prefix paths are set and start with /
func (p PrefixConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePath("API_PREFIX_DEVICE", p.Device),
		RequirePath("API_PREFIX_METRICS", p.Metrics),
	)
}
