package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/randalmurphal/emailbison/bison"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

type createFlags struct {
	file         string
	sequenceFile string

	name         string
	campaignType string

	scheduleStart    string
	scheduleEnd      string
	scheduleTimezone string
	includeWeekends  bool
	saveAsTemplate   bool

	senderEmailIDs []int
	leadListID     int
	leadIDs        []int
	allowParallel  bool

	start      bool
	forceStart bool
}

func (a *app) campaignCreateCommand() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign and optionally configure and start it",
		Long: `Create a campaign from flags or from a JSON/YAML spec file.

The workflow runs in order: create, settings, schedule, sequence, sender
emails, leads, start. It stops at the first failed step and reports the
steps that completed, including the id of the created campaign.`,
		Example: `  emailbison campaign create --name "Q3 Outreach" --schedule-start 09:00 --schedule-end 17:00
  emailbison campaign create --file campaign.yaml --start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := f.spec(cmd.Flags())
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}

			api, settings, err := a.client()
			if err != nil {
				return err
			}
			if spec.Schedule != nil && spec.Schedule.Timezone == "" {
				if _, err := settings.Location(); err != nil {
					return err
				}
			}

			result, err := api.CreateCampaign(cmd.Context(), *spec, bison.CreateOptions{
				ForceStart:      f.forceStart,
				DefaultTimezone: settings.DefaultTimezone,
				Logger:          a.logger,
			})
			if err != nil {
				return err
			}
			return a.printCreateResult(result)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.file, "file", "f", "", "Campaign spec file (.json, .yaml or .yml)")
	fs.StringVar(&f.sequenceFile, "sequence-file", "", "Sequence file (.json, .yaml or .yml)")
	fs.StringVar(&f.name, "name", "", "Campaign name")
	fs.StringVar(&f.campaignType, "type", "", "Campaign type: outbound or reply_followup")

	fs.Int("max-emails-per-day", 0, "Daily sending cap")
	fs.Int("max-new-leads-per-day", 0, "Daily cap on new leads contacted")
	fs.Bool("plain-text", false, "Send plain text emails")
	fs.Bool("open-tracking", false, "Track opens")
	fs.Bool("reputation-building", false, "Enable reputation building")
	fs.Bool("can-unsubscribe", false, "Include an unsubscribe link")
	fs.String("unsubscribe-text", "", "Unsubscribe link text")

	fs.StringVar(&f.scheduleStart, "schedule-start", "", "Daily sending window start (HH:MM)")
	fs.StringVar(&f.scheduleEnd, "schedule-end", "", "Daily sending window end (HH:MM)")
	fs.StringVar(&f.scheduleTimezone, "schedule-timezone", "", "Schedule timezone (defaults to default_timezone)")
	fs.BoolVar(&f.includeWeekends, "include-weekends", false, "Also send on Saturday and Sunday")
	fs.BoolVar(&f.saveAsTemplate, "save-schedule-template", false, "Save the schedule as a template")

	fs.IntSliceVar(&f.senderEmailIDs, "sender-email-id", nil, "Sender email id to attach (repeatable)")
	fs.IntVar(&f.leadListID, "lead-list-id", 0, "Lead list to attach")
	fs.IntSliceVar(&f.leadIDs, "lead-id", nil, "Lead id to attach (repeatable)")
	fs.BoolVar(&f.allowParallel, "allow-parallel-sending", false, "Allow leads already in other campaigns")

	fs.BoolVar(&f.start, "start", false, "Start the campaign after configuring it")
	fs.BoolVar(&f.forceStart, "force-start", false, "Start even if preflight checks fail (implies --start)")
	return cmd
}

// spec builds the campaign spec from --file and overlays the flags that
// were set.
func (f *createFlags) spec(fs *pflag.FlagSet) (*bison.CampaignSpec, error) {
	spec := &bison.CampaignSpec{}
	if f.file != "" {
		loaded, err := bison.LoadCampaignSpec(f.file)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}

	if fs.Changed("name") {
		spec.Name = f.name
	}
	if fs.Changed("type") {
		spec.Type = f.campaignType
	}
	if spec.Name == "" {
		return nil, bisonerrors.Validation("name", "is required (pass --name or a spec file)")
	}

	applySettings(fs, spec)
	if err := f.applySchedule(fs, spec); err != nil {
		return nil, err
	}

	if f.sequenceFile != "" {
		seq, err := bison.LoadSequence(f.sequenceFile)
		if err != nil {
			return nil, err
		}
		spec.Sequence = seq
	}

	if len(f.senderEmailIDs) > 0 {
		spec.SenderEmailIDs = f.senderEmailIDs
		spec.SenderEmails = nil
	}

	if fs.Changed("lead-list-id") || len(f.leadIDs) > 0 {
		if fs.Changed("lead-list-id") && len(f.leadIDs) > 0 {
			return nil, bisonerrors.Validation("lead-list-id", "cannot be combined with --lead-id")
		}
		leads := &bison.Leads{AllowParallelSending: f.allowParallel}
		if fs.Changed("lead-list-id") {
			id := f.leadListID
			leads.LeadListID = &id
		} else {
			leads.LeadIDs = f.leadIDs
		}
		spec.Leads = leads
	} else if spec.Leads != nil && fs.Changed("allow-parallel-sending") {
		spec.Leads.AllowParallelSending = f.allowParallel
	}

	if f.start || f.forceStart {
		spec.Start = true
	}
	return spec, nil
}

// applySettings overlays the settings flags that were set.
func applySettings(fs *pflag.FlagSet, spec *bison.CampaignSpec) {
	s := bison.CampaignSettings{
		MaxEmailsPerDay:    optionalInt(fs, "max-emails-per-day"),
		MaxNewLeadsPerDay:  optionalInt(fs, "max-new-leads-per-day"),
		PlainText:          optionalBool(fs, "plain-text"),
		OpenTracking:       optionalBool(fs, "open-tracking"),
		ReputationBuilding: optionalBool(fs, "reputation-building"),
		CanUnsubscribe:     optionalBool(fs, "can-unsubscribe"),
		UnsubscribeText:    optionalString(fs, "unsubscribe-text"),
	}
	if s.IsEmpty() {
		return
	}
	if spec.Settings == nil {
		spec.Settings = &bison.CampaignSettings{}
	}
	merged := *spec.Settings
	for _, o := range []struct {
		dst **int
		src *int
	}{
		{&merged.MaxEmailsPerDay, s.MaxEmailsPerDay},
		{&merged.MaxNewLeadsPerDay, s.MaxNewLeadsPerDay},
	} {
		if o.src != nil {
			*o.dst = o.src
		}
	}
	for _, o := range []struct {
		dst **bool
		src *bool
	}{
		{&merged.PlainText, s.PlainText},
		{&merged.OpenTracking, s.OpenTracking},
		{&merged.ReputationBuilding, s.ReputationBuilding},
		{&merged.CanUnsubscribe, s.CanUnsubscribe},
	} {
		if o.src != nil {
			*o.dst = o.src
		}
	}
	if s.UnsubscribeText != nil {
		merged.UnsubscribeText = s.UnsubscribeText
	}
	spec.Settings = &merged
}

func (f *createFlags) applySchedule(fs *pflag.FlagSet, spec *bison.CampaignSpec) error {
	touched := fs.Changed("schedule-start") || fs.Changed("schedule-end") ||
		fs.Changed("schedule-timezone") || fs.Changed("include-weekends") || fs.Changed("save-schedule-template")
	if !touched {
		return nil
	}

	sched := bison.Schedule{}
	if spec.Schedule != nil {
		sched = *spec.Schedule
	}
	if fs.Changed("schedule-start") {
		sched.StartTime = f.scheduleStart
	}
	if fs.Changed("schedule-end") {
		sched.EndTime = f.scheduleEnd
	}
	if fs.Changed("schedule-timezone") {
		sched.Timezone = f.scheduleTimezone
	}
	if fs.Changed("include-weekends") {
		weekends := f.includeWeekends
		sched.Saturday = &weekends
		sched.Sunday = &weekends
	}
	if fs.Changed("save-schedule-template") {
		sched.SaveAsTemplate = f.saveAsTemplate
	}
	if sched.StartTime == "" || sched.EndTime == "" {
		return bisonerrors.Validation("schedule", "--schedule-start and --schedule-end are both required")
	}
	spec.Schedule = &sched
	return nil
}

func (a *app) printCreateResult(result *bison.CreateResult) error {
	if a.printer.Format().Structured() {
		return a.printer.Print(result)
	}

	a.printer.Success("Created campaign %d (%s).", result.ID, result.Name)
	summary := map[string]any{
		"id":      result.ID,
		"name":    result.Name,
		"status":  orDash(result.Status),
		"started": result.Started,
	}
	if result.SequenceID != nil {
		summary["sequence_id"] = *result.SequenceID
		summary["sequence_step_ids"] = result.SequenceStepIDs
	}
	if len(result.SenderEmailIDs) > 0 {
		summary["sender_email_ids"] = result.SenderEmailIDs
	}
	if result.Started {
		summary["start_status"] = orDash(result.StartStatus)
	}
	return a.printer.KeyValues(summary)
}
