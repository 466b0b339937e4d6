package bison

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// Campaign types.
const (
	TypeOutbound      = "outbound"
	TypeReplyFollowup = "reply_followup"
)

// CampaignSpec is the input of the provisioning workflow.
type CampaignSpec struct {
	Name     string            `json:"name" yaml:"name" validate:"required"`
	Type     string            `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=outbound reply_followup"`
	Settings *CampaignSettings `json:"settings,omitempty" yaml:"settings,omitempty" validate:"omitempty"`
	Schedule *Schedule         `json:"schedule,omitempty" yaml:"schedule,omitempty" validate:"omitempty"`
	Sequence *Sequence         `json:"sequence,omitempty" yaml:"sequence,omitempty" validate:"omitempty"`

	SenderEmailIDs []int           `json:"sender_email_ids,omitempty" yaml:"sender_email_ids,omitempty" validate:"omitempty,min=1,excluded_with=SenderEmails,dive,gt=0"`
	SenderEmails   *SenderSelector `json:"sender_emails,omitempty" yaml:"sender_emails,omitempty" validate:"omitempty"`

	Leads *Leads `json:"leads,omitempty" yaml:"leads,omitempty" validate:"omitempty"`
	Start bool   `json:"start,omitempty" yaml:"start,omitempty"`
}

// CampaignSettings maps to PATCH {campaigns}/{id}/update. Nil fields are
// left out of the payload.
type CampaignSettings struct {
	Name                      *string `json:"name,omitempty" yaml:"name,omitempty"`
	MaxEmailsPerDay           *int    `json:"max_emails_per_day,omitempty" yaml:"max_emails_per_day,omitempty" validate:"omitempty,gt=0"`
	MaxNewLeadsPerDay         *int    `json:"max_new_leads_per_day,omitempty" yaml:"max_new_leads_per_day,omitempty" validate:"omitempty,gt=0"`
	PlainText                 *bool   `json:"plain_text,omitempty" yaml:"plain_text,omitempty"`
	OpenTracking              *bool   `json:"open_tracking,omitempty" yaml:"open_tracking,omitempty"`
	ReputationBuilding        *bool   `json:"reputation_building,omitempty" yaml:"reputation_building,omitempty"`
	CanUnsubscribe            *bool   `json:"can_unsubscribe,omitempty" yaml:"can_unsubscribe,omitempty"`
	UnsubscribeText           *string `json:"unsubscribe_text,omitempty" yaml:"unsubscribe_text,omitempty"`
	IncludeAutoRepliesInStats *bool   `json:"include_auto_replies_in_stats,omitempty" yaml:"include_auto_replies_in_stats,omitempty"`
}

// IsEmpty reports whether no setting is present.
func (s CampaignSettings) IsEmpty() bool {
	return s == CampaignSettings{}
}

// Schedule maps to POST {campaigns}/{id}/schedule. Unset weekdays default
// to Monday through Friday.
type Schedule struct {
	Monday    *bool `json:"monday,omitempty" yaml:"monday,omitempty"`
	Tuesday   *bool `json:"tuesday,omitempty" yaml:"tuesday,omitempty"`
	Wednesday *bool `json:"wednesday,omitempty" yaml:"wednesday,omitempty"`
	Thursday  *bool `json:"thursday,omitempty" yaml:"thursday,omitempty"`
	Friday    *bool `json:"friday,omitempty" yaml:"friday,omitempty"`
	Saturday  *bool `json:"saturday,omitempty" yaml:"saturday,omitempty"`
	Sunday    *bool `json:"sunday,omitempty" yaml:"sunday,omitempty"`

	StartTime string `json:"start_time" yaml:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" yaml:"end_time" validate:"required,hhmm"`
	// Timezone falls back to default_timezone when empty.
	Timezone       string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	SaveAsTemplate bool   `json:"save_as_template,omitempty" yaml:"save_as_template,omitempty"`
}

// Payload renders the request body with weekday defaults applied.
func (s Schedule) Payload() map[string]any {
	day := func(v *bool, def bool) bool {
		if v == nil {
			return def
		}
		return *v
	}
	return map[string]any{
		"monday":           day(s.Monday, true),
		"tuesday":          day(s.Tuesday, true),
		"wednesday":        day(s.Wednesday, true),
		"thursday":         day(s.Thursday, true),
		"friday":           day(s.Friday, true),
		"saturday":         day(s.Saturday, false),
		"sunday":           day(s.Sunday, false),
		"start_time":       s.StartTime,
		"end_time":         s.EndTime,
		"timezone":         s.Timezone,
		"save_as_template": s.SaveAsTemplate,
	}
}

// Sequence is a titled list of steps (v1.1 API).
type Sequence struct {
	Title string         `json:"title" yaml:"title" validate:"required"`
	Steps []SequenceStep `json:"sequence_steps" yaml:"sequence_steps" validate:"required,min=1,dive"`
}

// SequenceStep is one email in a sequence.
type SequenceStep struct {
	ID                    *int     `json:"id,omitempty" yaml:"id,omitempty"`
	EmailSubject          string   `json:"email_subject" yaml:"email_subject" validate:"required"`
	EmailSubjectVariables []string `json:"email_subject_variables,omitempty" yaml:"email_subject_variables,omitempty"`
	Order                 *int     `json:"order,omitempty" yaml:"order,omitempty" validate:"omitempty,gte=1"`
	EmailBody             string   `json:"email_body" yaml:"email_body" validate:"required"`
	WaitInDays            *int     `json:"wait_in_days" yaml:"wait_in_days" validate:"required,gte=0"`
	Variant               *bool    `json:"variant,omitempty" yaml:"variant,omitempty"`
	VariantFromStep       *int     `json:"variant_from_step,omitempty" yaml:"variant_from_step,omitempty" validate:"omitempty,excluded_with=VariantFromStepID"`
	VariantFromStepID     *int     `json:"variant_from_step_id,omitempty" yaml:"variant_from_step_id,omitempty"`
	ThreadReply           *bool    `json:"thread_reply,omitempty" yaml:"thread_reply,omitempty"`
}

// SenderSelector picks sender accounts by listing them instead of naming ids.
type SenderSelector struct {
	SenderFilter `yaml:",inline"`

	// Status keeps only accounts whose status matches exactly.
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	// Limit caps how many matches are attached, lowest ids first. Zero
	// attaches every match.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0"`
}

// Leads selects leads by list or by id, never both.
type Leads struct {
	LeadListID           *int  `json:"lead_list_id,omitempty" yaml:"lead_list_id,omitempty" validate:"omitempty,gt=0,excluded_with=LeadIDs"`
	LeadIDs              []int `json:"lead_ids,omitempty" yaml:"lead_ids,omitempty" validate:"omitempty,min=1,dive,gt=0"`
	AllowParallelSending bool  `json:"allow_parallel_sending,omitempty" yaml:"allow_parallel_sending,omitempty"`
}

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmm.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the spec and returns a ValidationError naming the first
// offending field.
func (s *CampaignSpec) Validate() error {
	return validateStruct(s)
}

// Validate checks the sequence.
func (s *Sequence) Validate() error {
	return validateStruct(s)
}

func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return bisonerrors.Wrap(bisonerrors.KindValidation, err, "invalid input")
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return bisonerrors.Validation(field, reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "hhmm":
		return "must be HH:MM"
	case "min":
		return fmt.Sprintf("must have at least %s item(s)", fe.Param())
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "excluded_with":
		return "cannot be combined with " + jsonName(fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// jsonName converts a Go field name like LeadIDs into lead_ids.
func jsonName(goName string) string {
	names := map[string]string{
		"LeadIDs":           "lead_ids",
		"SenderEmails":      "sender_emails",
		"VariantFromStepID": "variant_from_step_id",
	}
	if n, ok := names[goName]; ok {
		return n
	}
	return goName
}

// LoadCampaignSpec reads and validates a JSON or YAML campaign spec.
func LoadCampaignSpec(path string) (*CampaignSpec, error) {
	var spec CampaignSpec
	if err := decodeFile(path, &spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadSequence reads and validates a JSON or YAML sequence file.
func LoadSequence(path string) (*Sequence, error) {
	var seq Sequence
	if err := decodeFile(path, &seq); err != nil {
		return nil, err
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bisonerrors.Validationf("file", "file not found: %s", path)
		}
		return bisonerrors.Validationf("file", "cannot read %s: %v", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = DecodeYAML(data, v)
	default:
		err = DecodeJSON(data, v)
	}
	if err != nil {
		return bisonerrors.Validationf("file", "invalid %s: %v", path, err)
	}
	return nil
}

// DecodeJSON decodes a single top-level object, rejecting unknown fields.
func DecodeJSON(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("file must contain a JSON object at the top level")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level object")
	}
	return nil
}

// DecodeYAML decodes a YAML mapping, rejecting unknown fields.
func DecodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file is empty")
		}
		return err
	}
	return nil
}
