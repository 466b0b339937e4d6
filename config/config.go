package config

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// DefaultEnvPrefix is prepended to upper-cased keys for environment lookup.
const DefaultEnvPrefix = "EMAILBISON_"

// DefaultLayer returns the built-in defaults as a layer.
func DefaultLayer() Layer {
	return Layer{
		TimeoutSeconds:   Value(strconv.FormatFloat(DefaultTimeoutSeconds, 'f', -1, 64)),
		Retries:          Value(strconv.Itoa(DefaultRetries)),
		CampaignsPath:    Value(DefaultCampaignsPath),
		CampaignsV11Path: Value(DefaultCampaignsV11Path),
		SenderEmailsPath: Value(DefaultSenderEmailsPath),
	}
}

// EnvLayer builds a layer from environment variables named prefix+KEY.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func EnvLayer(prefix string, lookup func(string) (string, bool)) Layer {
	var layer Layer
	if lookup == nil {
		return layer
	}
	for _, key := range EnvKeys() {
		if v, ok := lookup(EnvName(prefix, key)); ok && v != "" {
			layer.Set(key, v)
		}
	}
	return layer
}

// EnvName returns the environment variable consulted for key.
func EnvName(prefix string, key Key) string {
	return prefix + strings.ToUpper(string(key))
}

// Resolve merges sources option by option and validates the result.
// It performs no I/O and returns the same Settings for the same input.
func Resolve(src Sources) (Settings, error) {
	get := func(key Key) string {
		v, _, _ := src.pick(key)
		return v
	}

	var s Settings

	baseURL := get(KeyBaseURL)
	if baseURL == "" {
		return Settings{}, bisonerrors.NewMissingOption(string(KeyBaseURL))
	}
	if err := validateBaseURL(baseURL); err != nil {
		return Settings{}, err
	}
	s.BaseURL = strings.TrimRight(baseURL, "/")

	token := get(KeyAPIToken)
	if token == "" {
		return Settings{}, bisonerrors.NewMissingOption(string(KeyAPIToken))
	}
	s.APIToken = Secret(token)

	s.TimeoutSeconds = DefaultTimeoutSeconds
	if raw := get(KeyTimeoutSeconds); raw != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Settings{}, bisonerrors.Validationf(string(KeyTimeoutSeconds), "must be a number, got %q", raw)
		}
		if f <= 0 {
			return Settings{}, bisonerrors.Validation(string(KeyTimeoutSeconds), "must be > 0")
		}
		s.TimeoutSeconds = f
	}

	s.Retries = DefaultRetries
	if raw := get(KeyRetries); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Settings{}, bisonerrors.Validationf(string(KeyRetries), "must be an integer, got %q", raw)
		}
		if n < 0 {
			return Settings{}, bisonerrors.Validation(string(KeyRetries), "must be >= 0")
		}
		s.Retries = n
	}

	s.DefaultTimezone = get(KeyDefaultTimezone)

	var err error
	if s.CampaignsPath, err = apiPath(KeyCampaignsPath, get(KeyCampaignsPath), DefaultCampaignsPath); err != nil {
		return Settings{}, err
	}
	if s.CampaignsV11Path, err = apiPath(KeyCampaignsV11Path, get(KeyCampaignsV11Path), DefaultCampaignsV11Path); err != nil {
		return Settings{}, err
	}
	if s.SenderEmailsPath, err = apiPath(KeySenderEmailsPath, get(KeySenderEmailsPath), DefaultSenderEmailsPath); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Explain reports which source supplied each defined option. Options
// filled from the built-in constants are reported as SourceDefault.
func Explain(src Sources) map[Key]Source {
	out := make(map[Key]Source, len(Keys()))
	for _, key := range Keys() {
		if _, source, ok := src.pick(key); ok {
			out[key] = source
			continue
		}
		if _, ok := DefaultLayer().Get(key); ok {
			out[key] = SourceDefault
		}
	}
	return out
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return bisonerrors.Validationf(string(KeyBaseURL), "must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

func apiPath(key Key, raw, fallback string) (string, error) {
	if raw == "" {
		return fallback, nil
	}
	if !strings.HasPrefix(raw, "/") {
		return "", bisonerrors.Validationf(string(key), "must start with \"/\", got %q", raw)
	}
	return raw, nil
}

// ResolverConfig configures the process-facing resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to key names for environment variable lookup.
	// Defaults to "EMAILBISON_".
	EnvPrefix string

	// ConfigPaths lists candidate config files. The first one that exists
	// is loaded. Defaults to DefaultConfigPaths().
	ConfigPaths []string

	// ExplicitPath names a config file that must exist. When set it
	// replaces ConfigPaths. When empty, <prefix>CONFIG is consulted.
	ExplicitPath string

	// Defaults overrides DefaultLayer().
	Defaults *Layer

	// LookupEnv reads the environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// ErrWriter is where warnings are written. Nil discards them.
	ErrWriter io.Writer

	// Logger receives debug events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver reads the environment and config file into layers and resolves
// them together with caller-supplied flags.
type Resolver struct {
	config     ResolverConfig
	configPath string

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// NewResolver creates a new configuration resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.EnvPrefix == "" {
		cfg.EnvPrefix = DefaultEnvPrefix
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ExplicitPath == "" {
		if v, ok := cfg.LookupEnv(cfg.EnvPrefix + "CONFIG"); ok {
			cfg.ExplicitPath = v
		}
	}
	if cfg.ConfigPaths == nil {
		cfg.ConfigPaths = DefaultConfigPaths()
	}
	return &Resolver{config: cfg}
}

// warn adds a warning and optionally prints it.
func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Sources gathers all four layers without validating them.
func (r *Resolver) Sources(flags Layer) (Sources, error) {
	src := Sources{
		Flags:    flags,
		Env:      EnvLayer(r.config.EnvPrefix, r.config.LookupEnv),
		Defaults: DefaultLayer(),
	}
	if r.config.Defaults != nil {
		src.Defaults = *r.config.Defaults
	}

	file, err := r.loadFile()
	if err != nil {
		return Sources{}, err
	}
	src.File = file

	r.config.Logger.Debug("config sources gathered",
		"config_path", r.configPath,
		"flags", !flags.IsEmpty(),
		"env", !src.Env.IsEmpty(),
		"file", !src.File.IsEmpty(),
	)
	return src, nil
}

// Resolve gathers sources and resolves them into Settings.
func (r *Resolver) Resolve(flags Layer) (Settings, error) {
	src, err := r.Sources(flags)
	if err != nil {
		return Settings{}, err
	}
	return Resolve(src)
}

func (r *Resolver) loadFile() (Layer, error) {
	var (
		f   fileLayer
		err error
	)
	if r.config.ExplicitPath != "" {
		f, err = readFile(r.config.ExplicitPath)
		if err != nil {
			return Layer{}, err
		}
	} else {
		path, ok, statErr := firstExisting(r.config.ConfigPaths)
		if statErr != nil {
			return Layer{}, statErr
		}
		if !ok {
			return Layer{}, nil
		}
		if f, err = readFile(path); err != nil {
			return Layer{}, err
		}
	}

	r.configPath = f.path
	for _, key := range f.unknown {
		r.warn(fmt.Sprintf("unknown key %q in %s", key, f.path))
	}
	return f.layer, nil
}

// ConfigPath returns the file that was loaded by the last call to Sources,
// or "" when no file contributed.
func (r *Resolver) ConfigPath() string {
	return r.configPath
}

// CandidatePaths returns the files the resolver considers, in order.
func (r *Resolver) CandidatePaths() []string {
	if r.config.ExplicitPath != "" {
		return []string{r.config.ExplicitPath}
	}
	return append([]string(nil), r.config.ConfigPaths...)
}

// EnvPrefix returns the environment variable prefix in use.
func (r *Resolver) EnvPrefix() string {
	return r.config.EnvPrefix
}
