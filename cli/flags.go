package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/randalmurphal/emailbison/config"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
	"github.com/randalmurphal/emailbison/output"
)

// globalFlags are accepted by every command.
type globalFlags struct {
	fs *pflag.FlagSet

	json       bool
	output     string
	debug      bool
	noColor    bool
	configPath string

	baseURL       string
	apiToken      string
	timeout       string
	retries       string
	timezone      string
	campaignsPath string
}

// settingFlags maps flag names to the option they set. Option values stay
// strings so the resolver is the single place that parses them.
var settingFlags = []struct {
	name string
	key  config.Key
}{
	{"base-url", config.KeyBaseURL},
	{"api-token", config.KeyAPIToken},
	{"timeout", config.KeyTimeoutSeconds},
	{"retries", config.KeyRetries},
	{"timezone", config.KeyDefaultTimezone},
	{"campaigns-path", config.KeyCampaignsPath},
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	g.fs = fs

	fs.BoolVar(&g.json, "json", false, "Print machine-readable JSON (same as --output json)")
	fs.StringVarP(&g.output, "output", "o", string(output.FormatHuman), "Output format: human, json or yaml")
	fs.BoolVar(&g.debug, "debug", false, "Log request and retry details to stderr")
	fs.BoolVar(&g.noColor, "no-color", false, "Disable colored messages")
	fs.StringVar(&g.configPath, "config", "", "Config file to load (default: first existing of the standard locations)")

	fs.StringVar(&g.baseURL, "base-url", "", "EmailBison base URL, e.g. https://app.emailbison.com")
	fs.StringVar(&g.apiToken, "api-token", "", "API token (prefer EMAILBISON_API_TOKEN)")
	fs.StringVar(&g.timeout, "timeout", "", "Per-attempt timeout in seconds")
	fs.StringVar(&g.retries, "retries", "", "Retries after the first attempt")
	fs.StringVar(&g.timezone, "timezone", "", "Default IANA timezone for schedules and date ranges")
	fs.StringVar(&g.campaignsPath, "campaigns-path", "", "Campaigns endpoint path")
}

func (g *globalFlags) value(name string) string {
	switch name {
	case "base-url":
		return g.baseURL
	case "api-token":
		return g.apiToken
	case "timeout":
		return g.timeout
	case "retries":
		return g.retries
	case "timezone":
		return g.timezone
	case "campaigns-path":
		return g.campaignsPath
	}
	return ""
}

// layer returns the flags layer. Only flags set on the command line are
// defined; an explicit empty value leaves the option undefined.
func (g *globalFlags) layer() config.Layer {
	var l config.Layer
	if g.fs == nil {
		return l
	}
	for _, f := range settingFlags {
		if g.fs.Changed(f.name) {
			l.Set(f.key, g.value(f.name))
		}
	}
	return l
}

// format reconciles --json and --output.
func (g *globalFlags) format() (output.Format, error) {
	format, err := output.ParseFormat(g.output)
	if err != nil {
		return "", err
	}
	if g.json {
		if g.fs != nil && g.fs.Changed("output") && format != output.FormatJSON {
			return "", bisonerrors.Validationf("output", "--json conflicts with --output %s", g.output)
		}
		return output.FormatJSON, nil
	}
	return format, nil
}

// parseID parses a positive integer argument.
func parseID(name, raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, bisonerrors.Validationf(name, "must be a positive integer, got %q", raw)
	}
	return id, nil
}

// optionalBool returns a pointer to the flag value when it was set.
func optionalBool(fs *pflag.FlagSet, name string) *bool {
	if !fs.Changed(name) {
		return nil
	}
	v, err := fs.GetBool(name)
	if err != nil {
		return nil
	}
	return &v
}

// optionalInt returns a pointer to the flag value when it was set.
func optionalInt(fs *pflag.FlagSet, name string) *int {
	if !fs.Changed(name) {
		return nil
	}
	v, err := fs.GetInt(name)
	if err != nil {
		return nil
	}
	return &v
}

// optionalString returns a pointer to the flag value when it was set.
func optionalString(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v, err := fs.GetString(name)
	if err != nil {
		return nil
	}
	return &v
}

// requirePositive rejects non-positive ids in a repeated flag.
func requirePositive(name string, ids []int) error {
	for _, id := range ids {
		if id <= 0 {
			return bisonerrors.Validationf(name, "must be a positive integer, got %d", id)
		}
	}
	return nil
}
