// Package config provides configuration types and helpers for simple-deviceguard.
//
// # Overview
//
// The config package provides:
//   - Environment variable helpers with type conversion
//   - Configuration validation utilities
//   - Verification policy settings (DeviceConfig)
//   - Cross-origin settings (CORSConfig)
//   - Route prefixes (PrefixConfig)
//
// # Environment Variable Helpers
//
//	origins := config.GetEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"})
//	maxAge := config.GetEnvInt("CORS_MAX_AGE", 300)
//	enabled := config.GetEnvBool("CORS_ENABLED", true)
//
// # Configuration Validation
//
// Each config type returns ValidationErrors; Validate combines them:
//
//	err := config.Validate(
//		deviceConfig.Validate,
//		corsConfig.Validate,
//		prefixConfig.Validate,
//	)
//
// DeviceConfig carries cleanenv tags and is normally embedded in the command's
// Config struct and read with cleanenv.ReadEnv. CORSConfig and PrefixConfig are
// loaded with NewCORSConfigFromEnv and LoadPrefixConfig.
package config
