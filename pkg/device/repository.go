package device

import (
	"context"
	"time"
)

// Registration records which user currently owns an IdentityKey
type Registration struct {
	Key          IdentityKey      `json:"key"`
	OwnerUserID  string           `json:"owner_user_id"`
	RegisteredAt time.Time        `json:"registered_at"`
	Attributes   DeviceAttributes `json:"attributes"`
}

// Age returns how long ago the registration was made relative to now
func (r Registration) Age(now time.Time) time.Duration {
	return now.Sub(r.RegisteredAt)
}

// DeviceRepository defines the storage operations behind the device registry.
//
// The registry is process memory only, so operations cannot fail.
// Implementations only need to be safe for concurrent use of individual
// calls. Atomicity of a whole verification is provided by DeviceService.
type DeviceRepository interface {
	// Registry: one Registration per IdentityKey, overwritten in place
	GetRegistration(ctx context.Context, key IdentityKey) (Registration, bool)
	SaveRegistration(ctx context.Context, registration Registration)
	CountRegistrations(ctx context.Context) int

	// User device index: append only, insertion order preserved
	AppendUserDevice(ctx context.Context, userID string, key IdentityKey)
	FindUserDevices(ctx context.Context, userID string) []IdentityKey
	CountUserDevices(ctx context.Context, userID string) int
	CountUsers(ctx context.Context) int
}
