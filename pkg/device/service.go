package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-deviceguard/pkg/errors"
)

const (
	// DefaultMaxDevicesPerUser is the number of distinct devices a user may register
	DefaultMaxDevicesPerUser = 3
	// DefaultReuseWindow is how long a device stays bound to its owner before
	// another user may take it over
	DefaultReuseWindow = 24 * time.Hour
)

// ErrRegistrationNotFound is returned when no registration exists for a device
var ErrRegistrationNotFound = errors.New(errors.ErrCodeNotFound, "registration not found")

// Decision is the outcome of a device verification
type Decision string

const (
	DecisionAllowedKnown              Decision = "ALLOWED_KNOWN"
	DecisionAllowedNew                Decision = "ALLOWED_NEW"
	DecisionAllowedReplacedStaleOwner Decision = "ALLOWED_REPLACED_STALE_OWNER"
	DecisionDeniedRecentOtherOwner    Decision = "DENIED_RECENT_OTHER_OWNER"
	DecisionDeniedDeviceLimit         Decision = "DENIED_DEVICE_LIMIT"
	DecisionRejectedInvalidInput      Decision = "REJECTED_INVALID_INPUT"
)

// Allowed reports whether the decision lets the device through
func (d Decision) Allowed() bool {
	switch d {
	case DecisionAllowedKnown, DecisionAllowedNew, DecisionAllowedReplacedStaleOwner:
		return true
	default:
		return false
	}
}

// Stats is a point-in-time view of the registry size
type Stats struct {
	RegisteredDevices int `json:"registered_devices"`
	DistinctUsers     int `json:"distinct_users"`
}

// Option configures a DeviceService
type Option func(*DeviceService)

// WithMaxDevicesPerUser overrides the per-user device limit
func WithMaxDevicesPerUser(n int) Option {
	return func(s *DeviceService) {
		s.maxDevicesPerUser = n
	}
}

// WithReuseWindow overrides how long a registration blocks other users
func WithReuseWindow(d time.Duration) Option {
	return func(s *DeviceService) {
		s.reuseWindow = d
	}
}

// WithClock replaces the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *DeviceService) {
		s.now = now
	}
}

// WithMetrics enables prometheus metrics
func WithMetrics(metrics *Metrics) Option {
	return func(s *DeviceService) {
		s.metrics = metrics
	}
}

// DeviceService is the device registry and verification policy.
//
// A single mutex covers every Evaluate end to end, so the lookup, the
// ownership decision and any resulting write happen as one unit.
type DeviceService struct {
	deviceRepository  DeviceRepository
	maxDevicesPerUser int
	reuseWindow       time.Duration
	now               func() time.Time
	metrics           *Metrics
	mu                sync.Mutex
}

// NewDeviceService creates a new device service with the given repository
func NewDeviceService(deviceRepository DeviceRepository, opts ...Option) *DeviceService {
	s := &DeviceService{
		deviceRepository:  deviceRepository,
		maxDevicesPerUser: DefaultMaxDevicesPerUser,
		reuseWindow:       DefaultReuseWindow,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate decides whether userID may use the device described by attrs.
// It never fails: malformed input is reported as DecisionRejectedInvalidInput.
func (s *DeviceService) Evaluate(ctx context.Context, userID string, attrs DeviceAttributes) (Decision, string) {
	start := time.Now()

	s.mu.Lock()
	decision, reason := s.evaluateLocked(ctx, userID, attrs)
	s.mu.Unlock()

	s.metrics.ObserveEvaluateLatency(time.Since(start))
	s.metrics.IncrementDecision(decision)
	return decision, reason
}

func (s *DeviceService) evaluateLocked(ctx context.Context, userID string, attrs DeviceAttributes) (Decision, string) {
	key, err := BuildSignature(attrs)
	if err != nil {
		slog.Debug("Rejected device attributes", "userID", userID, "error", err)
		return DecisionRejectedInvalidInput, "Missing device information"
	}

	now := s.now()

	if registration, exists := s.deviceRepository.GetRegistration(ctx, key); exists {
		if registration.OwnerUserID == userID {
			return DecisionAllowedKnown, "Device verification successful"
		}

		age := registration.Age(now)
		if age < s.reuseWindow {
			slog.Info("Device recently used by another user",
				"userID", userID,
				"owner", registration.OwnerUserID,
				"registeredAt", registration.RegisteredAt.Format(time.RFC3339))
			return DecisionDeniedRecentOtherOwner,
				fmt.Sprintf("This device was recently used by another user (within %d hours)", int(age.Hours()))
		}

		// Takeover does not append to the new owner's device list and the
		// previous owner's list keeps the key.
		s.deviceRepository.SaveRegistration(ctx, Registration{
			Key:          key,
			OwnerUserID:  userID,
			RegisteredAt: now,
			Attributes:   attrs,
		})
		slog.Info("Stale device registration replaced",
			"userID", userID,
			"previousOwner", registration.OwnerUserID,
			"age", age.String())
		return DecisionAllowedReplacedStaleOwner, "Device verification successful (updated old registration)"
	}

	if count := s.deviceRepository.CountUserDevices(ctx, userID); count >= s.maxDevicesPerUser {
		slog.Info("Device limit reached", "userID", userID, "deviceCount", count)
		return DecisionDeniedDeviceLimit,
			fmt.Sprintf("Maximum device limit reached (%d devices per user)", s.maxDevicesPerUser)
	}

	s.deviceRepository.SaveRegistration(ctx, Registration{
		Key:          key,
		OwnerUserID:  userID,
		RegisteredAt: now,
		Attributes:   attrs,
	})
	s.deviceRepository.AppendUserDevice(ctx, userID, key)
	slog.Info("New device registered", "userID", userID)
	return DecisionAllowedNew, "New device registered successfully"
}

// Stats returns the number of registered devices and users with devices
func (s *DeviceService) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		RegisteredDevices: s.deviceRepository.CountRegistrations(ctx),
		DistinctUsers:     s.deviceRepository.CountUsers(ctx),
	}
}

// FindDevicesByUser returns the identity keys registered by userID in registration order
func (s *DeviceService) FindDevicesByUser(ctx context.Context, userID string) []IdentityKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceRepository.FindUserDevices(ctx, userID)
}

// GetRegistration returns the current registration for the device described by attrs
func (s *DeviceService) GetRegistration(ctx context.Context, attrs DeviceAttributes) (Registration, error) {
	key, err := BuildSignature(attrs)
	if err != nil {
		return Registration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	registration, exists := s.deviceRepository.GetRegistration(ctx, key)
	if !exists {
		return Registration{}, ErrRegistrationNotFound
	}
	return registration, nil
}
