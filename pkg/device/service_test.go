package device

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced time source
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupDeviceService(t *testing.T, opts ...Option) (*DeviceService, *InMemDeviceRepository, *testClock) {
	t.Helper()
	repo := NewInMemDeviceRepository()
	clock := newTestClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewDeviceService(repo, opts...), repo, clock
}

var d1 = DeviceAttributes{Fingerprint: "fp1", IP: "1.2.3.4"}

func TestDeviceService_FirstRegistrationThenKnown(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	decision, reason := service.Evaluate(ctx, "U1", d1)
	assert.Equal(t, DecisionAllowedNew, decision)
	assert.Equal(t, "New device registered successfully", reason)

	decision, reason = service.Evaluate(ctx, "U1", d1)
	assert.Equal(t, DecisionAllowedKnown, decision)
	assert.Equal(t, "Device verification successful", reason)

	stats := service.Stats(ctx)
	assert.Equal(t, 1, stats.RegisteredDevices)
	assert.Equal(t, 1, stats.DistinctUsers)
}

func TestDeviceService_KnownDoesNotRefreshRegistrationTime(t *testing.T) {
	service, _, clock := setupDeviceService(t)
	ctx := context.Background()

	decision, _ := service.Evaluate(ctx, "U1", d1)
	require.Equal(t, DecisionAllowedNew, decision)
	registeredAt := clock.Now()

	clock.Advance(20 * time.Hour)
	decision, _ = service.Evaluate(ctx, "U1", d1)
	require.Equal(t, DecisionAllowedKnown, decision)

	registration, err := service.GetRegistration(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, registeredAt, registration.RegisteredAt)

	// Recency is measured from the first registration, not the last use
	clock.Advance(5 * time.Hour)
	decision, _ = service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionAllowedReplacedStaleOwner, decision)
}

func TestDeviceService_CrossUserWithinWindow(t *testing.T) {
	service, _, clock := setupDeviceService(t)
	ctx := context.Background()

	decision, _ := service.Evaluate(ctx, "U1", d1)
	require.Equal(t, DecisionAllowedNew, decision)

	decision, reason := service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionDeniedRecentOtherOwner, decision)
	assert.Equal(t, "This device was recently used by another user (within 0 hours)", reason)

	registration, err := service.GetRegistration(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, "U1", registration.OwnerUserID)

	// Elapsed hours are truncated
	clock.Advance(23*time.Hour + 59*time.Minute)
	decision, reason = service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionDeniedRecentOtherOwner, decision)
	assert.Contains(t, reason, "within 23 hours")

	assert.Empty(t, service.FindDevicesByUser(ctx, "U2"))
}

func TestDeviceService_CrossUserPastWindow(t *testing.T) {
	service, repo, clock := setupDeviceService(t)
	ctx := context.Background()

	decision, _ := service.Evaluate(ctx, "U1", d1)
	require.Equal(t, DecisionAllowedNew, decision)

	// Move the stored registration 25 hours into the past
	key, err := BuildSignature(d1)
	require.NoError(t, err)
	registration, exists := repo.GetRegistration(ctx, key)
	require.True(t, exists)
	registration.RegisteredAt = clock.Now().Add(-25 * time.Hour)
	repo.SaveRegistration(ctx, registration)

	decision, reason := service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionAllowedReplacedStaleOwner, decision)
	assert.Equal(t, "Device verification successful (updated old registration)", reason)

	registration, err = service.GetRegistration(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, "U2", registration.OwnerUserID)
	assert.Equal(t, clock.Now(), registration.RegisteredAt)

	// Ownership has flipped
	decision, _ = service.Evaluate(ctx, "U1", d1)
	assert.Equal(t, DecisionDeniedRecentOtherOwner, decision)

	decision, _ = service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionAllowedKnown, decision)
}

func TestDeviceService_ExactlyWindowIsStale(t *testing.T) {
	service, _, clock := setupDeviceService(t)
	ctx := context.Background()

	service.Evaluate(ctx, "U1", d1)
	clock.Advance(DefaultReuseWindow)

	decision, _ := service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionAllowedReplacedStaleOwner, decision)
}

func TestDeviceService_TakeoverDoesNotTouchDeviceLists(t *testing.T) {
	service, _, clock := setupDeviceService(t)
	ctx := context.Background()

	service.Evaluate(ctx, "U1", d1)
	clock.Advance(25 * time.Hour)

	decision, _ := service.Evaluate(ctx, "U2", d1)
	require.Equal(t, DecisionAllowedReplacedStaleOwner, decision)

	key, err := BuildSignature(d1)
	require.NoError(t, err)
	assert.Equal(t, []IdentityKey{key}, service.FindDevicesByUser(ctx, "U1"))
	assert.Empty(t, service.FindDevicesByUser(ctx, "U2"))

	stats := service.Stats(ctx)
	assert.Equal(t, 1, stats.RegisteredDevices)
	assert.Equal(t, 1, stats.DistinctUsers)
}

func TestDeviceService_DeviceLimit(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		attrs := DeviceAttributes{Fingerprint: fmt.Sprintf("fp%d", i), IP: "1.2.3.4"}
		decision, _ := service.Evaluate(ctx, "U1", attrs)
		require.Equal(t, DecisionAllowedNew, decision, "device %d", i)
	}

	before := service.Stats(ctx)

	decision, reason := service.Evaluate(ctx, "U1", DeviceAttributes{Fingerprint: "fp4", IP: "1.2.3.4"})
	assert.Equal(t, DecisionDeniedDeviceLimit, decision)
	assert.Equal(t, "Maximum device limit reached (3 devices per user)", reason)

	assert.Equal(t, before, service.Stats(ctx))
	assert.Len(t, service.FindDevicesByUser(ctx, "U1"), 3)

	// Known devices remain usable at the limit
	decision, _ = service.Evaluate(ctx, "U1", DeviceAttributes{Fingerprint: "fp2", IP: "1.2.3.4"})
	assert.Equal(t, DecisionAllowedKnown, decision)

	_, err := service.GetRegistration(ctx, DeviceAttributes{Fingerprint: "fp4", IP: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestDeviceService_IPChurnCountsAsNewDevice(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		decision, _ := service.Evaluate(ctx, "U1", DeviceAttributes{Fingerprint: "fp1", IP: ip})
		require.Equal(t, DecisionAllowedNew, decision)
	}

	decision, _ := service.Evaluate(ctx, "U1", DeviceAttributes{Fingerprint: "fp1", IP: "10.0.0.4"})
	assert.Equal(t, DecisionDeniedDeviceLimit, decision)
}

func TestDeviceService_InvalidInputDoesNotMutate(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	inputs := []DeviceAttributes{
		{},
		{IP: "1.2.3.4"},
		{Fingerprint: "fp1"},
		{Fingerprint: "fp1", Browser: "ua", Timezone: strPtr("UTC")},
	}

	for _, attrs := range inputs {
		decision, reason := service.Evaluate(ctx, "U1", attrs)
		assert.Equal(t, DecisionRejectedInvalidInput, decision)
		assert.Equal(t, "Missing device information", reason)
	}

	assert.Equal(t, Stats{}, service.Stats(ctx))
	assert.Empty(t, service.FindDevicesByUser(ctx, "U1"))
}

func TestDeviceService_CustomLimits(t *testing.T) {
	service, _, clock := setupDeviceService(t,
		WithMaxDevicesPerUser(1),
		WithReuseWindow(time.Hour),
	)
	ctx := context.Background()

	decision, _ := service.Evaluate(ctx, "U1", d1)
	require.Equal(t, DecisionAllowedNew, decision)

	decision, reason := service.Evaluate(ctx, "U1", DeviceAttributes{Fingerprint: "fp2", IP: "1.2.3.4"})
	assert.Equal(t, DecisionDeniedDeviceLimit, decision)
	assert.Equal(t, "Maximum device limit reached (1 devices per user)", reason)

	clock.Advance(time.Hour)
	decision, _ = service.Evaluate(ctx, "U2", d1)
	assert.Equal(t, DecisionAllowedReplacedStaleOwner, decision)
}

func TestDecision_Allowed(t *testing.T) {
	assert.True(t, DecisionAllowedKnown.Allowed())
	assert.True(t, DecisionAllowedNew.Allowed())
	assert.True(t, DecisionAllowedReplacedStaleOwner.Allowed())
	assert.False(t, DecisionDeniedRecentOtherOwner.Allowed())
	assert.False(t, DecisionDeniedDeviceLimit.Allowed())
	assert.False(t, DecisionRejectedInvalidInput.Allowed())
}

func TestDeviceService_ConcurrentNewDevicesSameUser(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	const n = 20
	decisions := make(chan Decision, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			decision, _ := service.Evaluate(ctx, "new-user", DeviceAttributes{
				Fingerprint: fmt.Sprintf("fp-%d", i),
				IP:          "1.2.3.4",
			})
			decisions <- decision
		}(i)
	}
	close(start)
	wg.Wait()
	close(decisions)

	counts := map[Decision]int{}
	for decision := range decisions {
		counts[decision]++
	}

	assert.Equal(t, DefaultMaxDevicesPerUser, counts[DecisionAllowedNew])
	assert.Equal(t, n-DefaultMaxDevicesPerUser, counts[DecisionDeniedDeviceLimit])
	assert.Len(t, service.FindDevicesByUser(ctx, "new-user"), DefaultMaxDevicesPerUser)
	assert.Equal(t, DefaultMaxDevicesPerUser, service.Stats(ctx).RegisteredDevices)
}

func TestDeviceService_ConcurrentSameDeviceDifferentUsers(t *testing.T) {
	service, _, _ := setupDeviceService(t)
	ctx := context.Background()

	const n = 10
	decisions := make(chan Decision, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision, _ := service.Evaluate(ctx, fmt.Sprintf("user-%d", i), d1)
			decisions <- decision
		}(i)
	}
	wg.Wait()
	close(decisions)

	counts := map[Decision]int{}
	for decision := range decisions {
		counts[decision]++
	}

	assert.Equal(t, 1, counts[DecisionAllowedNew])
	assert.Equal(t, n-1, counts[DecisionDeniedRecentOtherOwner])
	stats := service.Stats(ctx)
	assert.Equal(t, 1, stats.RegisteredDevices)
	assert.Equal(t, 1, stats.DistinctUsers)
}

func TestDeviceService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	service, _, _ := setupDeviceService(t, WithMetrics(metrics))
	ctx := context.Background()

	service.Evaluate(ctx, "U1", d1)
	service.Evaluate(ctx, "U1", d1)
	service.Evaluate(ctx, "U2", d1)
	service.Evaluate(ctx, "U1", DeviceAttributes{})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(string(DecisionAllowedNew))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(string(DecisionAllowedKnown))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(string(DecisionDeniedRecentOtherOwner))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(string(DecisionRejectedInvalidInput))))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.EvaluateLatency))
}
