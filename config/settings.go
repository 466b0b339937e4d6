package config

import (
	"log/slog"
	"strings"
	"time"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// Built-in defaults used when no layer defines an option.
const (
	DefaultTimeoutSeconds   = 20.0
	DefaultRetries          = 2
	DefaultCampaignsPath    = "/api/campaigns"
	DefaultCampaignsV11Path = "/api/campaigns/v1.1"
	DefaultSenderEmailsPath = "/api/sender-emails"
)

// Settings is the fully resolved and validated configuration.
//
// Settings is a plain value: two resolutions of the same sources compare
// equal with ==.
type Settings struct {
	BaseURL          string  `json:"base_url" yaml:"base_url"`
	APIToken         Secret  `json:"api_token" yaml:"api_token"`
	TimeoutSeconds   float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	Retries          int     `json:"retries" yaml:"retries"`
	DefaultTimezone  string  `json:"default_timezone,omitempty" yaml:"default_timezone,omitempty"`
	CampaignsPath    string  `json:"campaigns_path" yaml:"campaigns_path"`
	CampaignsV11Path string  `json:"campaigns_v11_path" yaml:"campaigns_v11_path"`
	SenderEmailsPath string  `json:"sender_emails_path" yaml:"sender_emails_path"`
}

// Timeout returns the per-attempt deadline.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds * float64(time.Second))
}

// Attempts returns the total number of attempts allowed for one call.
func (s Settings) Attempts() int {
	return s.Retries + 1
}

// Location loads DefaultTimezone. An unset timezone yields time.Local.
func (s Settings) Location() (*time.Location, error) {
	if s.DefaultTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.DefaultTimezone)
	if err != nil {
		return nil, bisonerrors.Validationf(string(KeyDefaultTimezone), "unknown timezone %q", s.DefaultTimezone)
	}
	return loc, nil
}

// Secret holds a credential. Every formatting path renders the masked
// form; only Reveal returns the raw value.
type Secret string

// Reveal returns the raw credential.
func (s Secret) Reveal() string {
	return string(s)
}

// String returns the masked credential.
func (s Secret) String() string {
	return Mask(string(s))
}

// GoString masks %#v output.
func (s Secret) GoString() string {
	return s.String()
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalText keeps the raw value out of JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const maskVisible = 4

// Mask renders token as its first few characters followed by a fixed run
// of asterisks. Tokens too short to show a prefix are fully masked, so the
// result never reveals the whole token or its length.
func Mask(token string) string {
	if token == "" {
		return ""
	}
	r := []rune(token)
	if len(r) <= maskVisible {
		return strings.Repeat("*", 8)
	}
	return string(r[:maskVisible]) + "…" + strings.Repeat("*", 8)
}
