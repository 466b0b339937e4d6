package bison

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
	bisonhttp "github.com/randalmurphal/emailbison/http"
)

// Step names recorded by the workflows.
const (
	StepCreate             = "campaign.create"
	StepUpdateSettings     = "campaign.update_settings"
	StepSchedule           = "campaign.schedule"
	StepSequenceCreate     = "campaign.sequence.create"
	StepSenderEmailsList   = "sender_emails.list"
	StepAttachSenderEmails = "campaign.attach_sender_emails"
	StepAttachLeadList     = "campaign.attach_lead_list"
	StepAttachLeads        = "campaign.attach_leads"
	StepDetails            = "campaign.details"
	StepSenderEmails       = "campaign.sender_emails"
	StepSequenceGet        = "campaign.sequence.get"
	StepResume             = "campaign.resume"
	StepDetailsAfterStart  = "campaign.details_after_start"
)

// StepResult records one successful API call made by a workflow.
type StepResult struct {
	Name       string `json:"name" yaml:"name"`
	Method     string `json:"method" yaml:"method"`
	URL        string `json:"url" yaml:"url"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	RequestID  string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Attempts   int    `json:"attempts" yaml:"attempts"`
}

// CreateResult summarizes a completed provisioning workflow.
type CreateResult struct {
	ID              int            `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Status          string         `json:"status,omitempty" yaml:"status,omitempty"`
	SenderEmailIDs  []int          `json:"sender_email_ids,omitempty" yaml:"sender_email_ids,omitempty"`
	SequenceID      *int           `json:"sequence_id,omitempty" yaml:"sequence_id,omitempty"`
	SequenceStepIDs []int          `json:"sequence_step_ids,omitempty" yaml:"sequence_step_ids,omitempty"`
	Started         bool           `json:"started" yaml:"started"`
	StartStatus     string         `json:"start_status,omitempty" yaml:"start_status,omitempty"`
	Steps           []StepResult   `json:"steps" yaml:"steps"`
	Raw             map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// StartResult summarizes a preflight-and-resume run.
type StartResult struct {
	CampaignID int          `json:"campaign_id" yaml:"campaign_id"`
	Status     string       `json:"status,omitempty" yaml:"status,omitempty"`
	Missing    []string     `json:"preflight_missing,omitempty" yaml:"preflight_missing,omitempty"`
	Steps      []StepResult `json:"steps" yaml:"steps"`
}

// WorkflowError reports where a workflow stopped. Err keeps its original
// classification, so errors.ExitCode sees through the wrapper.
type WorkflowError struct {
	Err        error
	CampaignID int
	Steps      []StepResult
}

func (e *WorkflowError) Error() string { return e.Err.Error() }

func (e *WorkflowError) Unwrap() error { return e.Err }

// CreateOptions tunes CreateCampaign.
type CreateOptions struct {
	// ForceStart skips preflight checks when CampaignSpec.Start is set.
	ForceStart bool
	// DefaultTimezone fills an empty schedule timezone.
	DefaultTimezone string
	Logger          *slog.Logger
}

type recorder struct {
	logger *slog.Logger
	steps  []StepResult
}

func (r *recorder) call(name string, fn func() (*bisonhttp.Response, error)) (*bisonhttp.Response, error) {
	resp, err := fn()
	if err != nil {
		r.logger.Debug("workflow step failed", "step", name, "error", err)
		return nil, err
	}
	r.steps = append(r.steps, StepResult{
		Name:       name,
		Method:     resp.Method,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		RequestID:  resp.RequestID,
		Attempts:   resp.Attempts,
	})
	r.logger.Debug("workflow step done", "step", name, "status", resp.StatusCode)
	return resp, nil
}

// CreateCampaign provisions a campaign from spec. Steps run in order and
// the first failure stops the workflow; the returned *WorkflowError lists
// the steps that completed.
func (a *API) CreateCampaign(ctx context.Context, spec CampaignSpec, opts CreateOptions) (*CreateResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Schedule != nil {
		sched := *spec.Schedule
		if sched.Timezone == "" {
			sched.Timezone = opts.DefaultTimezone
		}
		if sched.Timezone == "" {
			e := bisonerrors.Validation("schedule.timezone", "is required")
			e.Suggestion = "Set schedule.timezone, pass --schedule-timezone, or configure default_timezone."
			return nil, e
		}
		spec.Schedule = &sched
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := &recorder{logger: logger}

	var id int
	fail := func(err error) (*CreateResult, error) {
		return nil, &WorkflowError{Err: err, CampaignID: id, Steps: rec.steps}
	}

	created, err := rec.call(StepCreate, func() (*bisonhttp.Response, error) {
		return a.CreateCampaignRaw(ctx, spec.Name, spec.Type)
	})
	if err != nil {
		return fail(err)
	}
	id, ok := intValue(dataObject(created.Data)["id"])
	if !ok {
		return fail(bisonerrors.Newf(bisonerrors.KindUnexpected, "Could not extract campaign id from response: %s", string(created.Raw)))
	}

	result := &CreateResult{
		ID:     id,
		Name:   spec.Name,
		Status: stringValue(dataObject(created.Data)["status"]),
		Raw:    created.Data,
	}

	if spec.Settings != nil && !spec.Settings.IsEmpty() {
		if _, err := rec.call(StepUpdateSettings, func() (*bisonhttp.Response, error) {
			return a.UpdateCampaignSettings(ctx, id, *spec.Settings)
		}); err != nil {
			return fail(err)
		}
	}

	if spec.Schedule != nil {
		if _, err := rec.call(StepSchedule, func() (*bisonhttp.Response, error) {
			return a.CreateSchedule(ctx, id, *spec.Schedule)
		}); err != nil {
			return fail(err)
		}
	}

	if spec.Sequence != nil {
		seqResp, err := rec.call(StepSequenceCreate, func() (*bisonhttp.Response, error) {
			return a.CreateSequenceSteps(ctx, id, *spec.Sequence)
		})
		if err != nil {
			return fail(err)
		}
		data := dataObject(seqResp.Data)
		if seqID, ok := intValue(data["id"]); ok {
			result.SequenceID = &seqID
		}
		result.SequenceStepIDs = idsOf(data["sequence_steps"])
	}

	senderIDs := spec.SenderEmailIDs
	if len(senderIDs) == 0 && spec.SenderEmails != nil {
		listResp, err := rec.call(StepSenderEmailsList, func() (*bisonhttp.Response, error) {
			return a.ListSenderEmails(ctx, spec.SenderEmails.SenderFilter)
		})
		if err != nil {
			return fail(err)
		}
		senderIDs = selectSenders(listResp.Data["data"], *spec.SenderEmails)
		if len(senderIDs) == 0 {
			e := bisonerrors.New(bisonerrors.KindValidation, "No sender emails matched sender_emails selector.")
			e.Option = "sender_emails"
			e.Suggestion = "Try `emailbison sender-emails list` to inspect available accounts."
			return fail(e)
		}
	}
	if len(senderIDs) > 0 {
		if _, err := rec.call(StepAttachSenderEmails, func() (*bisonhttp.Response, error) {
			return a.AttachSenderEmails(ctx, id, senderIDs)
		}); err != nil {
			return fail(err)
		}
		result.SenderEmailIDs = senderIDs
	}

	if spec.Leads != nil {
		switch {
		case spec.Leads.LeadListID != nil:
			if _, err := rec.call(StepAttachLeadList, func() (*bisonhttp.Response, error) {
				return a.AttachLeadList(ctx, id, *spec.Leads.LeadListID, spec.Leads.AllowParallelSending)
			}); err != nil {
				return fail(err)
			}
		case len(spec.Leads.LeadIDs) > 0:
			if _, err := rec.call(StepAttachLeads, func() (*bisonhttp.Response, error) {
				return a.AttachLeads(ctx, id, spec.Leads.LeadIDs, spec.Leads.AllowParallelSending)
			}); err != nil {
				return fail(err)
			}
		}
	}

	if spec.Start {
		status, _, err := a.start(ctx, rec, id, opts.ForceStart, "--force-start")
		if err != nil {
			return fail(err)
		}
		result.Started = true
		result.StartStatus = status
	}

	result.Steps = rec.steps
	return result, nil
}

// StartCampaign checks that the campaign has leads, sender emails and a
// sequence, then resumes it. force skips the checks.
func (a *API) StartCampaign(ctx context.Context, id int, force bool, logger *slog.Logger) (*StartResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rec := &recorder{logger: logger}
	status, missing, err := a.start(ctx, rec, id, force, "--force")
	if err != nil {
		return nil, &WorkflowError{Err: err, CampaignID: id, Steps: rec.steps}
	}
	return &StartResult{CampaignID: id, Status: status, Missing: missing, Steps: rec.steps}, nil
}

// start runs the preflight checks and resumes the campaign. forceFlag names
// the caller's override in the refusal suggestion.
func (a *API) start(ctx context.Context, rec *recorder, id int, force bool, forceFlag string) (string, []string, error) {
	var missing []string

	details, err := rec.call(StepDetails, func() (*bisonhttp.Response, error) {
		return a.CampaignDetails(ctx, id)
	})
	if err != nil {
		return "", nil, err
	}
	if n, ok := intValue(dataObject(details.Data)["total_leads"]); !ok || n == 0 {
		missing = append(missing, "no leads attached")
	}

	senders, err := rec.call(StepSenderEmails, func() (*bisonhttp.Response, error) {
		return a.CampaignSenderEmails(ctx, id)
	})
	if err != nil {
		return "", nil, err
	}
	if list, ok := senders.Data["data"].([]any); !ok || len(list) == 0 {
		missing = append(missing, "no sender emails attached")
	}

	seq, err := rec.call(StepSequenceGet, func() (*bisonhttp.Response, error) {
		return a.GetSequenceSteps(ctx, id)
	})
	if err != nil {
		return "", nil, err
	}
	if steps, ok := dataObject(seq.Data)["sequence_steps"].([]any); !ok || len(steps) == 0 {
		missing = append(missing, "no sequence steps")
	}

	if len(missing) > 0 && !force {
		e := bisonerrors.New(bisonerrors.KindValidation,
			"Refusing to start campaign (preflight failed): "+strings.Join(missing, ", "))
		e.Option = "start"
		e.Suggestion = "Fix the campaign or pass " + forceFlag + " to skip preflight checks."
		return "", missing, e
	}

	if _, err := rec.call(StepResume, func() (*bisonhttp.Response, error) {
		return a.ResumeCampaign(ctx, id)
	}); err != nil {
		return "", missing, err
	}

	after, err := rec.call(StepDetailsAfterStart, func() (*bisonhttp.Response, error) {
		return a.CampaignDetails(ctx, id)
	})
	if err != nil {
		return "", missing, err
	}
	return stringValue(dataObject(after.Data)["status"]), missing, nil
}

// selectSenders filters listed accounts by status, orders them by id and
// applies the limit.
func selectSenders(data any, sel SenderSelector) []int {
	rows, _ := data.([]any)
	var ids []int
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		id, ok := intValue(obj["id"])
		if !ok {
			continue
		}
		if sel.Status != "" && stringValue(obj["status"]) != sel.Status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if sel.Limit > 0 && len(ids) > sel.Limit {
		ids = ids[:sel.Limit]
	}
	return ids
}

// dataObject returns body["data"] when it is an object.
func dataObject(body map[string]any) map[string]any {
	obj, _ := body["data"].(map[string]any)
	return obj
}

func idsOf(v any) []int {
	rows, _ := v.([]any)
	var ids []int
	for _, row := range rows {
		if obj, ok := row.(map[string]any); ok {
			if id, ok := intValue(obj["id"]); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func intValue(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
