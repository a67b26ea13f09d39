package device

import (
	"context"
	"log/slog"
	"sync"
)

// InMemDeviceRepository implements DeviceRepository using in-memory maps.
// State lives for the lifetime of the process.
type InMemDeviceRepository struct {
	registrations map[IdentityKey]Registration
	userDevices   map[string][]IdentityKey
	mu            sync.RWMutex
}

// NewInMemDeviceRepository creates a new empty in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		registrations: make(map[IdentityKey]Registration),
		userDevices:   make(map[string][]IdentityKey),
	}
}

// GetRegistration retrieves the registration stored under key
func (r *InMemDeviceRepository) GetRegistration(ctx context.Context, key IdentityKey) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.registrations[key]
	if !exists {
		slog.Debug("Registration not found", "key", key)
		return Registration{}, false
	}

	return registration, true
}

// SaveRegistration stores a registration, replacing any previous one for the same key
func (r *InMemDeviceRepository) SaveRegistration(ctx context.Context, registration Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registrations[registration.Key] = registration
	slog.Debug("Registration saved", "key", registration.Key, "owner", registration.OwnerUserID)
}

// CountRegistrations returns the number of registered identity keys
func (r *InMemDeviceRepository) CountRegistrations(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.registrations)
}

// AppendUserDevice adds key to the end of the user's device list
func (r *InMemDeviceRepository) AppendUserDevice(ctx context.Context, userID string, key IdentityKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userDevices[userID] = append(r.userDevices[userID], key)
	slog.Debug("Device appended to user", "userID", userID, "deviceCount", len(r.userDevices[userID]))
}

// FindUserDevices returns a copy of the user's device list in registration order
func (r *InMemDeviceRepository) FindUserDevices(ctx context.Context, userID string) []IdentityKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.userDevices[userID]
	result := make([]IdentityKey, len(keys))
	copy(result, keys)
	return result
}

// CountUserDevices returns how many devices have been registered by the user
func (r *InMemDeviceRepository) CountUserDevices(ctx context.Context, userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userDevices[userID])
}

// CountUsers returns the number of users with at least one registered device
func (r *InMemDeviceRepository) CountUsers(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userDevices)
}
