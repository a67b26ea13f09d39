package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tendant/simple-deviceguard/pkg/errors"
)

// SignatureSeparator joins the attribute segments of an IdentityKey
const SignatureSeparator = "-"

// ErrMissingRequiredField matches, via errors.Is, the error BuildSignature
// returns when the fingerprint or the IP address is absent.
var ErrMissingRequiredField = errors.New(errors.ErrCodeMissingRequired, "missing device information")

// DeviceAttributes contains the client supplied data used to identify a device
type DeviceAttributes struct {
	Fingerprint string  `json:"fingerprint"`
	IP          string  `json:"ip"`
	Browser     string  `json:"browser,omitempty"`
	UserAgent   string  `json:"userAgent,omitempty"` // Fallback when Browser is empty
	Timezone    *string `json:"timezone,omitempty"`  // May be absent or null
}

// UnmarshalJSON accepts strings, numbers and booleans for every attribute and
// stores them as text, so a numeric timezone offset such as -330 is kept as "-330".
// null or a missing field leaves the attribute absent.
func (a *DeviceAttributes) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var attrs DeviceAttributes
	for name, dst := range map[string]*string{
		"fingerprint": &attrs.Fingerprint,
		"ip":          &attrs.IP,
		"browser":     &attrs.Browser,
		"userAgent":   &attrs.UserAgent,
	} {
		text, present, err := scalarText(fields[name])
		if err != nil {
			return fmt.Errorf("device attribute %s: %w", name, err)
		}
		if present {
			*dst = text
		}
	}

	timezone, present, err := scalarText(fields["timezone"])
	if err != nil {
		return fmt.Errorf("device attribute timezone: %w", err)
	}
	if present {
		attrs.Timezone = &timezone
	}

	*a = attrs
	return nil
}

// scalarText renders a JSON scalar as text. present is false for null or a missing value.
func scalarText(raw json.RawMessage) (text string, present bool, err error) {
	if len(raw) == 0 {
		return "", false, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return "", false, err
	}

	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case json.Number:
		return v.String(), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	default:
		return "", false, fmt.Errorf("expected a string, number or boolean, got %T", v)
	}
}

// IdentityKey is the composite registry key derived from DeviceAttributes
type IdentityKey string

// EffectiveBrowser returns Browser, falling back to UserAgent
func (a DeviceAttributes) EffectiveBrowser() string {
	if a.Browser != "" {
		return a.Browser
	}
	return a.UserAgent
}

// EffectiveTimezone returns the timezone, rendering an absent value as empty
func (a DeviceAttributes) EffectiveTimezone() string {
	if a.Timezone == nil {
		return ""
	}
	return *a.Timezone
}

// BuildSignature derives the IdentityKey for a device.
// The key is fingerprint, IP, browser and timezone joined by SignatureSeparator,
// so a change in any one of them yields an unrelated key.
func BuildSignature(attrs DeviceAttributes) (IdentityKey, error) {
	if attrs.Fingerprint == "" {
		return "", errors.MissingRequired("fingerprint")
	}
	if attrs.IP == "" {
		return "", errors.MissingRequired("ip")
	}

	return IdentityKey(strings.Join([]string{
		attrs.Fingerprint,
		attrs.IP,
		attrs.EffectiveBrowser(),
		attrs.EffectiveTimezone(),
	}, SignatureSeparator)), nil
}
