package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-deviceguard/pkg/device"
	"github.com/tendant/simple-deviceguard/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"

	// HomeMessage is returned by the root liveness route
	HomeMessage = "Device Verification Backend is running!"
)

// DeviceHandler handles HTTP requests for device verification
type DeviceHandler struct {
	deviceService *device.DeviceService
	now           func() time.Time
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *device.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		now:           time.Now,
	}
}

// RawAttributes holds device_data as sent by the client: either a JSON
// object or a string containing an encoded JSON object.
type RawAttributes struct {
	Encoded    *string
	Structured *device.DeviceAttributes
}

// UnmarshalJSON accepts a string, an object or null
func (r *RawAttributes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*r = RawAttributes{}
		return nil
	case trimmed[0] == '"':
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return err
		}
		*r = RawAttributes{Encoded: &encoded}
		return nil
	default:
		var attrs device.DeviceAttributes
		if err := json.Unmarshal(trimmed, &attrs); err != nil {
			return err
		}
		*r = RawAttributes{Structured: &attrs}
		return nil
	}
}

// Attributes resolves the raw value into DeviceAttributes.
// An encoded string that does not decode yields empty attributes.
func (r RawAttributes) Attributes() device.DeviceAttributes {
	switch {
	case r.Structured != nil:
		return *r.Structured
	case r.Encoded != nil:
		var attrs device.DeviceAttributes
		if err := json.Unmarshal([]byte(*r.Encoded), &attrs); err != nil {
			slog.Warn("Failed to decode encoded device data, using empty attributes", "error", err)
			return device.DeviceAttributes{}
		}
		return attrs
	default:
		return device.DeviceAttributes{}
	}
}

// VerifyRequest represents the request body for device verification
type VerifyRequest struct {
	UserID     string        `json:"user_id"`
	DeviceData RawAttributes `json:"device_data"`
}

// VerifyResponse represents the response body for device verification
type VerifyResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	UserID    string          `json:"user_id"`
	Decision  device.Decision `json:"decision"`
	RequestID string          `json:"request_id"`
}

// StatsResponse represents the response body for registry statistics
type StatsResponse struct {
	TotalDevicesRegistered int     `json:"total_devices_registered"`
	TotalUsers             int     `json:"total_users"`
	Timestamp              float64 `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Home handles the liveness banner
func (h *DeviceHandler) Home(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, HomeMessage)
}

// Preflight answers CORS preflight requests for the verify route
func (h *DeviceHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Verify handles device verification for a user
func (h *DeviceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	req, err := decodeVerifyRequest(r.Body)
	if err != nil {
		slog.Error("Failed to decode verify request", "requestID", requestID, "error", err)
		renderErrorResponse(w, r, err)
		return
	}

	if req.UserID == "" {
		renderErrorResponse(w, r, errors.New(errors.ErrCodeMissingRequired, "User ID required"))
		return
	}

	attrs := req.DeviceData.Attributes()
	slog.Info("Verifying device",
		"requestID", requestID,
		"userID", req.UserID,
		"fingerprint", attrs.Fingerprint,
		"ip", attrs.IP)

	decision, reason := h.deviceService.Evaluate(r.Context(), req.UserID, attrs)

	response := VerifyResponse{
		Status:    StatusFailed,
		Message:   reason,
		UserID:    req.UserID,
		Decision:  decision,
		RequestID: requestID,
	}

	switch {
	case decision.Allowed():
		slog.Info("Verification successful", "requestID", requestID, "userID", req.UserID, "decision", decision)
		response.Status = StatusSuccess
		render.Status(r, http.StatusOK)
	case decision == device.DecisionRejectedInvalidInput:
		slog.Info("Verification rejected", "requestID", requestID, "userID", req.UserID, "reason", reason)
		render.Status(r, http.StatusBadRequest)
	default:
		slog.Info("Verification failed", "requestID", requestID, "userID", req.UserID, "decision", decision, "reason", reason)
		render.Status(r, http.StatusOK)
	}

	render.JSON(w, r, response)
}

// GetStats handles registry statistics
func (h *DeviceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.deviceService.Stats(r.Context())

	response := StatsResponse{
		TotalDevicesRegistered: stats.RegisteredDevices,
		TotalUsers:             stats.DistinctUsers,
		Timestamp:              float64(h.now().UnixNano()) / float64(time.Second),
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// Handler returns a router with all device verification routes
func Handler(h *DeviceHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.Home)
	r.Post("/verify", h.Verify)
	r.Options("/verify", h.Preflight)
	r.Get("/stats", h.GetStats)

	return r
}

func decodeVerifyRequest(body io.Reader) (VerifyRequest, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if err == io.EOF {
			return VerifyRequest{}, errors.New(errors.ErrCodeEmptyBody, "No data received")
		}
		return VerifyRequest{}, errors.Wrap(err, errors.ErrCodeInvalidFormat, "Invalid request body")
	}

	// null and any object without members count as no data
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return VerifyRequest{}, errors.Wrap(err, errors.ErrCodeInvalidFormat, "Invalid request body")
	}
	if len(fields) == 0 {
		return VerifyRequest{}, errors.New(errors.ErrCodeEmptyBody, "No data received")
	}

	var req VerifyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return VerifyRequest{}, errors.Wrap(err, errors.ErrCodeInvalidFormat, "Invalid request body")
	}
	return req, nil
}

// renderErrorResponse renders a structured error with the status mapped from its code
func renderErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	message := errors.GetMessage(err, "Internal server error")

	render.Status(r, errors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{
		Status:  StatusError,
		Message: message,
		Code:    string(code),
	})
}
