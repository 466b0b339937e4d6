package bison

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
	"github.com/randalmurphal/emailbison/testutil"
)

const specJSON = `{
  "name": "Q3 Outreach",
  "settings": {"max_emails_per_day": 200, "plain_text": true},
  "schedule": {"start_time": "09:00", "end_time": "17:00", "timezone": "America/New_York"},
  "sequence": {
    "title": "Intro",
    "sequence_steps": [
      {"email_subject": "Hi", "email_body": "Hello {FIRST_NAME}", "wait_in_days": 1},
      {"email_subject": "Follow up", "email_body": "Ping", "wait_in_days": 3, "thread_reply": true}
    ]
  },
  "sender_email_ids": [11, 12],
  "leads": {"lead_list_id": 5},
  "start": true
}`

const specYAML = `
name: Q3 Outreach
type: reply_followup
sender_emails:
  search: acme
  tag_ids: [1]
  status: Connected
  limit: 2
leads:
  lead_ids: [1, 2, 3]
  allow_parallel_sending: true
`

func TestLoadCampaignSpec_JSON(t *testing.T) {
	spec, err := LoadCampaignSpec(testutil.TempFileString(t, "spec.json", specJSON))
	require.NoError(t, err)

	assert.Equal(t, "Q3 Outreach", spec.Name)
	require.NotNil(t, spec.Settings)
	assert.Equal(t, 200, *spec.Settings.MaxEmailsPerDay)
	require.NotNil(t, spec.Sequence)
	assert.Len(t, spec.Sequence.Steps, 2)
	assert.True(t, *spec.Sequence.Steps[1].ThreadReply)
	assert.Equal(t, []int{11, 12}, spec.SenderEmailIDs)
	assert.Equal(t, 5, *spec.Leads.LeadListID)
	assert.True(t, spec.Start)
}

func TestLoadCampaignSpec_YAML(t *testing.T) {
	spec, err := LoadCampaignSpec(testutil.TempFileString(t, "spec.yaml", specYAML))
	require.NoError(t, err)

	assert.Equal(t, TypeReplyFollowup, spec.Type)
	require.NotNil(t, spec.SenderEmails)
	assert.Equal(t, "acme", spec.SenderEmails.Search)
	assert.Equal(t, []int{1}, spec.SenderEmails.TagIDs)
	assert.Equal(t, "Connected", spec.SenderEmails.Status)
	assert.Equal(t, 2, spec.SenderEmails.Limit)
	assert.Equal(t, []int{1, 2, 3}, spec.Leads.LeadIDs)
	assert.True(t, spec.Leads.AllowParallelSending)
}

func TestLoadCampaignSpec_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantMsg string
	}{
		{"unknown json field", "s.json", `{"name":"x","bogus":1}`, "bogus"},
		{"unknown yaml field", "s.yml", "name: x\nbogus: 1\n", "bogus"},
		{"top level array", "s.json", `[{"name":"x"}]`, "JSON object"},
		{"trailing data", "s.json", `{"name":"x"} {"name":"y"}`, "unexpected data"},
		{"empty yaml", "s.yaml", "", "file is empty"},
		{"malformed json", "s.json", `{"name":`, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCampaignSpec(testutil.TempFileString(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, bisonerrors.IsValidation(err))
			assert.Equal(t, 2, bisonerrors.ExitCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := LoadCampaignSpec("/does/not/exist.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestCampaignSpec_Validate(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name       string
		spec       CampaignSpec
		wantOption string
		wantMsg    string
	}{
		{
			name:       "missing name",
			spec:       CampaignSpec{},
			wantOption: "name",
			wantMsg:    "is required",
		},
		{
			name:       "bad type",
			spec:       CampaignSpec{Name: "x", Type: "blast"},
			wantOption: "type",
			wantMsg:    "outbound, reply_followup",
		},
		{
			name:       "bad schedule time",
			spec:       CampaignSpec{Name: "x", Schedule: &Schedule{StartTime: "9am", EndTime: "17:00"}},
			wantOption: "schedule.start_time",
			wantMsg:    "HH:MM",
		},
		{
			name:       "empty sequence",
			spec:       CampaignSpec{Name: "x", Sequence: &Sequence{Title: "t"}},
			wantOption: "sequence.sequence_steps",
			wantMsg:    "is required",
		},
		{
			name: "step without wait",
			spec: CampaignSpec{Name: "x", Sequence: &Sequence{Title: "t", Steps: []SequenceStep{
				{EmailSubject: "s", EmailBody: "b"},
			}}},
			wantOption: "sequence.sequence_steps[0].wait_in_days",
			wantMsg:    "is required",
		},
		{
			name: "negative wait",
			spec: CampaignSpec{Name: "x", Sequence: &Sequence{Title: "t", Steps: []SequenceStep{
				{EmailSubject: "s", EmailBody: "b", WaitInDays: intp(-1)},
			}}},
			wantOption: "sequence.sequence_steps[0].wait_in_days",
			wantMsg:    ">= 0",
		},
		{
			name:       "lead list and lead ids",
			spec:       CampaignSpec{Name: "x", Leads: &Leads{LeadListID: intp(1), LeadIDs: []int{2}}},
			wantOption: "leads.lead_list_id",
			wantMsg:    "cannot be combined with lead_ids",
		},
		{
			name: "sender ids and selector",
			spec: CampaignSpec{
				Name:           "x",
				SenderEmailIDs: []int{1},
				SenderEmails:   &SenderSelector{Limit: 1},
			},
			wantOption: "sender_email_ids",
			wantMsg:    "cannot be combined with sender_emails",
		},
		{
			name:       "non-positive sender id",
			spec:       CampaignSpec{Name: "x", SenderEmailIDs: []int{0}},
			wantOption: "sender_email_ids[0]",
			wantMsg:    "> 0",
		},
		{
			name:       "negative limit",
			spec:       CampaignSpec{Name: "x", SenderEmails: &SenderSelector{Limit: -1}},
			wantOption: "sender_emails.limit",
			wantMsg:    ">= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			require.Error(t, err)

			var be *bisonerrors.Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, bisonerrors.KindValidation, be.Kind)
			assert.Equal(t, tt.wantOption, be.Option)
			assert.Contains(t, be.Message, tt.wantMsg)
		})
	}

	valid := CampaignSpec{Name: "ok", Type: TypeOutbound}
	assert.NoError(t, valid.Validate())
}

func TestLoadSequence(t *testing.T) {
	path := testutil.TempFileString(t, "seq.yaml", `
title: Intro
sequence_steps:
  - email_subject: Hi
    email_body: Hello
    wait_in_days: 0
`)
	seq, err := LoadSequence(path)
	require.NoError(t, err)
	assert.Equal(t, "Intro", seq.Title)
	require.Len(t, seq.Steps, 1)
	assert.Equal(t, 0, *seq.Steps[0].WaitInDays)

	_, err = LoadSequence(testutil.TempFileString(t, "seq.json", `{"title":"x","sequence_steps":[]}`))
	require.Error(t, err)
	assert.True(t, bisonerrors.IsValidation(err))
}
