package config

// Source indicates where a configuration value came from.
type Source string

// Configuration source constants.
const (
	// SourceDefault indicates the value is a built-in default.
	SourceDefault Source = "default"

	// SourceFile indicates the value came from the config file.
	SourceFile Source = "file"

	// SourceEnv indicates the value came from an environment variable.
	SourceEnv Source = "env"

	// SourceFlag indicates the value was set via command-line flag.
	SourceFlag Source = "flag"
)

// Key names a configuration option. Keys double as config file keys.
type Key string

// Recognized options.
const (
	KeyBaseURL          Key = "base_url"
	KeyAPIToken         Key = "api_token"
	KeyTimeoutSeconds   Key = "timeout_seconds"
	KeyRetries          Key = "retries"
	KeyDefaultTimezone  Key = "default_timezone"
	KeyCampaignsPath    Key = "campaigns_path"
	KeyCampaignsV11Path Key = "campaigns_v11_path"
	KeySenderEmailsPath Key = "sender_emails_path"
)

// Keys returns every recognized option in display order.
func Keys() []Key {
	return []Key{
		KeyBaseURL,
		KeyAPIToken,
		KeyTimeoutSeconds,
		KeyRetries,
		KeyDefaultTimezone,
		KeyCampaignsPath,
		KeyCampaignsV11Path,
		KeySenderEmailsPath,
	}
}

// EnvKeys returns the options that can be set through environment variables.
func EnvKeys() []Key {
	return []Key{
		KeyBaseURL,
		KeyAPIToken,
		KeyTimeoutSeconds,
		KeyRetries,
		KeyDefaultTimezone,
		KeyCampaignsPath,
	}
}

// IsKey reports whether name is a recognized option.
func IsKey(name string) bool {
	for _, k := range Keys() {
		if string(k) == name {
			return true
		}
	}
	return false
}

// Layer is one configuration source. Every field is optional: a nil
// pointer or an empty string leaves the option undefined in this layer.
// Values are kept raw and parsed only after the winning layer is chosen.
type Layer struct {
	BaseURL          *string
	APIToken         *string
	TimeoutSeconds   *string
	Retries          *string
	DefaultTimezone  *string
	CampaignsPath    *string
	CampaignsV11Path *string
	SenderEmailsPath *string
}

// Value returns a pointer to s for building layers.
func Value(s string) *string {
	return &s
}

// Get returns the raw value of key and whether the layer defines it.
func (l Layer) Get(key Key) (string, bool) {
	p := l.ref(key)
	if p == nil || *p == nil || **p == "" {
		return "", false
	}
	return **p, true
}

// Set defines key in the layer. Unknown keys are ignored.
func (l *Layer) Set(key Key, value string) {
	if p := l.ref(key); p != nil {
		*p = &value
	}
}

// IsEmpty reports whether the layer defines no option.
func (l Layer) IsEmpty() bool {
	for _, k := range Keys() {
		if _, ok := l.Get(k); ok {
			return false
		}
	}
	return true
}

func (l *Layer) ref(key Key) **string {
	switch key {
	case KeyBaseURL:
		return &l.BaseURL
	case KeyAPIToken:
		return &l.APIToken
	case KeyTimeoutSeconds:
		return &l.TimeoutSeconds
	case KeyRetries:
		return &l.Retries
	case KeyDefaultTimezone:
		return &l.DefaultTimezone
	case KeyCampaignsPath:
		return &l.CampaignsPath
	case KeyCampaignsV11Path:
		return &l.CampaignsV11Path
	case KeySenderEmailsPath:
		return &l.SenderEmailsPath
	default:
		return nil
	}
}

// Sources holds the four layers in precedence order.
type Sources struct {
	Flags    Layer
	Env      Layer
	File     Layer
	Defaults Layer
}

type sourceLayer struct {
	source Source
	layer  Layer
}

func (s Sources) ordered() []sourceLayer {
	return []sourceLayer{
		{SourceFlag, s.Flags},
		{SourceEnv, s.Env},
		{SourceFile, s.File},
		{SourceDefault, s.Defaults},
	}
}

// pick returns the value of key from the first layer that defines it.
func (s Sources) pick(key Key) (string, Source, bool) {
	for _, sl := range s.ordered() {
		if v, ok := sl.layer.Get(key); ok {
			return v, sl.source, true
		}
	}
	return "", "", false
}

// Lookup returns the raw winning value of key and its source without
// validating it.
func (s Sources) Lookup(key Key) (string, Source, bool) {
	return s.pick(key)
}
