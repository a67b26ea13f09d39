package config

import "time"

// DeviceConfig contains the verification policy settings.
// Fields carry cleanenv tags so the struct can be embedded in a command's Config.
type DeviceConfig struct {
	// MaxDevicesPerUser is the number of distinct devices a user may register
	MaxDevicesPerUser int `env:"DEVICE_MAX_PER_USER" env-default:"3"`

	// ReuseWindow is how long a device stays bound to its last owner
	ReuseWindow time.Duration `env:"DEVICE_REUSE_WINDOW" env-default:"24h"`
}

// Validate checks the policy values
func (c DeviceConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePositive("DEVICE_MAX_PER_USER", c.MaxDevicesPerUser),
		RequireNonNegativeDuration("DEVICE_REUSE_WINDOW", c.ReuseWindow),
	)
}
