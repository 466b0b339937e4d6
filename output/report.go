package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/randalmurphal/emailbison/bison"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// Report is the rendered form of a failed command.
type Report struct {
	Type       string             `json:"type" yaml:"type"`
	Message    string             `json:"message" yaml:"message"`
	Suggestion string             `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Option     string             `json:"option,omitempty" yaml:"option,omitempty"`
	StatusCode int                `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	RequestID  string             `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Attempts   int                `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Details    any                `json:"details,omitempty" yaml:"details,omitempty"`
	CampaignID int                `json:"campaign_id,omitempty" yaml:"campaign_id,omitempty"`
	Steps      []bison.StepResult `json:"steps,omitempty" yaml:"steps,omitempty"`
	ExitCode   int                `json:"exit_code" yaml:"exit_code"`
}

// NewReport classifies err. A workflow failure contributes the campaign id
// and the steps that completed before it stopped.
func NewReport(err error) Report {
	e := bisonerrors.Classify(err)
	if e == nil {
		return Report{}
	}

	msg := e.Message
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	r := Report{
		Type:       e.Kind.String(),
		Message:    msg,
		Suggestion: e.Suggestion,
		Option:     e.Option,
		StatusCode: e.StatusCode,
		RequestID:  e.RequestID,
		Attempts:   e.Attempts,
		Details:    e.Body,
		ExitCode:   e.Kind.ExitCode(),
	}

	var werr *bison.WorkflowError
	if errors.As(err, &werr) {
		r.CampaignID = werr.CampaignID
		r.Steps = werr.Steps
	}
	return r
}

// Error writes a failure report to stderr. Structured formats emit
// {"error": report}.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	r := NewReport(err)

	var buf bytes.Buffer
	switch p.format {
	case FormatJSON:
		_ = encodeJSON(&buf, map[string]any{"error": r})
	case FormatYAML:
		_ = encodeYAML(&buf, map[string]any{"error": r})
	default:
		p.renderReport(&buf, r)
	}
	_ = p.write(p.errOut, buf.String())
}

func (p *Printer) renderReport(buf *bytes.Buffer, r Report) {
	fmt.Fprintf(buf, "%s %s\n", p.paint(color.FgRed, "Error:"), r.Message)

	var meta []string
	if r.StatusCode != 0 {
		meta = append(meta, fmt.Sprintf("status %d", r.StatusCode))
	}
	if r.RequestID != "" {
		meta = append(meta, "request id "+r.RequestID)
	}
	if r.Attempts > 1 {
		meta = append(meta, fmt.Sprintf("%d attempts", r.Attempts))
	}
	if len(meta) > 0 {
		fmt.Fprintf(buf, "  (%s)\n", strings.Join(meta, ", "))
	}

	if r.Details != nil {
		buf.WriteString("Details:\n")
		var details bytes.Buffer
		if err := encodeJSON(&details, r.Details); err == nil {
			for _, line := range strings.Split(strings.TrimRight(details.String(), "\n"), "\n") {
				buf.WriteString("  " + line + "\n")
			}
		}
	}

	if r.CampaignID != 0 {
		fmt.Fprintf(buf, "Campaign %d was created before the failure.\n", r.CampaignID)
	}
	if len(r.Steps) > 0 {
		names := make([]string, len(r.Steps))
		for i, s := range r.Steps {
			names[i] = s.Name
		}
		fmt.Fprintf(buf, "Completed steps: %s\n", strings.Join(names, ", "))
	}

	if r.Suggestion != "" {
		fmt.Fprintf(buf, "\n%s\n", r.Suggestion)
	}
}
