package output

import (
	"strings"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// Format selects how results are rendered.
type Format string

// Supported formats.
const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatHuman, FormatJSON, FormatYAML}
}

// ParseFormat parses a --output value. Matching is case-insensitive and
// "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "human", "table", "text":
		return FormatHuman, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", bisonerrors.Validationf("output", "unknown format %q (want human, json or yaml)", s)
	}
}

// Structured reports whether f is machine readable.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}
