// Package device provides device identity resolution and device-sharing
// detection for simple-deviceguard.
//
// A device is identified by an IdentityKey built from the client supplied
// fingerprint, IP address, browser and timezone. The DeviceService keeps a
// registry of which user owns each key and decides, per request, whether a
// user may use a device.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-deviceguard/pkg/device"
//
//	repo := device.NewInMemDeviceRepository()
//	service := device.NewDeviceService(
//		repo,
//		device.WithMaxDevicesPerUser(3),
//		device.WithReuseWindow(24*time.Hour),
//	)
//
//	decision, reason := service.Evaluate(ctx, userID, device.DeviceAttributes{
//		Fingerprint: "fp1",
//		IP:          "1.2.3.4",
//		Browser:     "Mozilla/5.0",
//	})
//	if !decision.Allowed() {
//		// report reason to the caller
//	}
//
// # Verification Rules
//
// Rules are applied in order:
//
//   - Missing fingerprint or IP: REJECTED_INVALID_INPUT, nothing is stored.
//   - Known key, same owner: ALLOWED_KNOWN. The registration time is not refreshed.
//   - Known key, other owner registered less than the reuse window ago:
//     DENIED_RECENT_OTHER_OWNER, the reason carries the elapsed whole hours.
//   - Known key, other owner registered at least the reuse window ago: the
//     registration moves to the new owner, ALLOWED_REPLACED_STALE_OWNER.
//   - Unknown key and the user already registered the maximum number of
//     devices: DENIED_DEVICE_LIMIT.
//   - Unknown key otherwise: the device is registered, ALLOWED_NEW.
//
// A user's device list only grows. Takeovers are not counted against the new
// owner and are not removed from the previous owner.
//
// # Concurrency
//
// Evaluate and Stats are serialized by one mutex, so concurrent requests
// cannot register the same key twice or exceed the device limit.
package device
