package config

// CORSConfig contains cross-origin settings for the verification routes.
// Fields have no env tags - populate manually or use NewCORSConfigFromEnv().
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// DefaultCORSConfig allows any origin to call the verification routes
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// NewCORSConfigFromEnv loads CORSConfig from standard environment variables.
//
// Environment variables:
//   - CORS_ENABLED: Enable CORS handling (default: true)
//   - CORS_ALLOWED_ORIGINS: Comma-separated origins (default: *)
//   - CORS_ALLOWED_METHODS: Comma-separated methods (default: GET,POST,OPTIONS)
//   - CORS_ALLOWED_HEADERS: Comma-separated headers (default: Accept,Content-Type,Authorization)
//   - CORS_ALLOW_CREDENTIALS: Allow credentials (default: false)
//   - CORS_MAX_AGE: Preflight cache duration in seconds (default: 300)
func NewCORSConfigFromEnv() CORSConfig {
	defaults := DefaultCORSConfig()
	return CORSConfig{
		Enabled:          GetEnvBool("CORS_ENABLED", defaults.Enabled),
		AllowedOrigins:   GetEnvSlice("CORS_ALLOWED_ORIGINS", defaults.AllowedOrigins),
		AllowedMethods:   GetEnvSlice("CORS_ALLOWED_METHODS", defaults.AllowedMethods),
		AllowedHeaders:   GetEnvSlice("CORS_ALLOWED_HEADERS", defaults.AllowedHeaders),
		AllowCredentials: GetEnvBool("CORS_ALLOW_CREDENTIALS", defaults.AllowCredentials),
		MaxAge:           GetEnvInt("CORS_MAX_AGE", defaults.MaxAge),
	}
}

// Validate checks the CORS settings when enabled
func (c CORSConfig) Validate() ValidationErrors {
	if !c.Enabled {
		return nil
	}
	return CollectErrors(
		RequireNonEmptySlice("CORS_ALLOWED_ORIGINS", c.AllowedOrigins),
		RequireNonEmptySlice("CORS_ALLOWED_METHODS", c.AllowedMethods),
		RequireNonNegative("CORS_MAX_AGE", c.MaxAge),
	)
}
