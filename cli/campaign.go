package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emailbison/bison"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
	bisonhttp "github.com/randalmurphal/emailbison/http"
)

func (a *app) campaignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "campaign",
		Aliases: []string{"campaigns"},
		Short:   "Manage campaigns",
	}
	cmd.AddCommand(
		a.campaignListCommand(),
		a.campaignGetCommand(),
		a.campaignCreateCommand(),
		a.campaignStartCommand(),
		a.campaignStateCommand("pause", "Pause sending", "paused", (*bison.API).PauseCampaign),
		a.campaignStateCommand("resume", "Resume sending without preflight checks", "resumed", (*bison.API).ResumeCampaign),
		a.campaignStateCommand("archive", "Archive a campaign", "archived", (*bison.API).ArchiveCampaign),
		a.campaignStatsCommand(),
		a.campaignRepliesCommand(),
		a.campaignStopFutureEmailsCommand(),
		a.campaignSenderEmailsCommand(),
		a.campaignSenderChangeCommand("attach-sender-emails", "Attach sender accounts", "Attached", (*bison.API).AttachSenderEmails),
		a.campaignSenderChangeCommand("remove-sender-emails", "Detach sender accounts", "Removed", (*bison.API).RemoveSenderEmails),
		a.sequenceCommand(),
	)
	return cmd
}

func (a *app) campaignListCommand() *cobra.Command {
	var (
		filter bison.CampaignFilter
		page   int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all && cmd.Flags().Changed("page") {
				return bisonerrors.Validation("page", "cannot be combined with --all")
			}
			if err := requirePositive("tag-id", filter.TagIDs); err != nil {
				return err
			}
			api, _, err := a.client()
			if err != nil {
				return err
			}
			if all {
				rows, err := api.ListAllCampaigns(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return a.printer.Table(nil, rows)
			}
			resp, err := api.ListCampaigns(cmd.Context(), filter, page)
			if err != nil {
				return err
			}
			return a.printer.Print(resp.Data)
		},
	}
	cmd.Flags().StringVar(&filter.Search, "search", "", "Filter by name")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status")
	cmd.Flags().IntSliceVar(&filter.TagIDs, "tag-id", nil, "Filter by tag id (repeatable)")
	cmd.Flags().IntVar(&page, "page", 0, "Page to fetch")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	return cmd
}

func (a *app) campaignGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get CAMPAIGN_ID",
		Short: "Show campaign details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.CampaignDetails(ctx, id)
				if err != nil {
					return err
				}
				return a.printer.Print(resp.Data)
			})
		},
	}
}

// campaignStateCommand builds pause, resume and archive.
func (a *app) campaignStateCommand(use, short, verb string, call func(*bison.API, context.Context, int) (*bisonhttp.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CAMPAIGN_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := call(api, ctx, id)
				if err != nil {
					return err
				}
				return a.printResponse(resp, fmt.Sprintf("Campaign %d %s.", id, verb))
			})
		},
	}
}

func (a *app) campaignStartCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "start CAMPAIGN_ID",
		Short: "Check leads, sender emails and sequence, then start sending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				result, err := api.StartCampaign(ctx, id, force, a.logger)
				if err != nil {
					return err
				}
				if a.printer.Format().Structured() {
					return a.printer.Print(result)
				}
				for _, m := range result.Missing {
					a.printer.Warn("started despite failed check: %s", m)
				}
				a.printer.Success("Campaign %d started (status: %s).", id, orDash(result.Status))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip preflight checks")
	return cmd
}

func (a *app) campaignStatsCommand() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "stats CAMPAIGN_ID",
		Short: "Show campaign statistics for a date range",
		Long:  "Show campaign statistics. The range defaults to the last 30 days in the default timezone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				loc, err := a.settings.Location()
				if err != nil {
					return err
				}
				startDate, endDate, err := bison.StatsRange(a.opts.Now(), loc, start, end)
				if err != nil {
					return err
				}
				resp, err := api.CampaignStats(ctx, id, startDate, endDate)
				if err != nil {
					return err
				}
				return a.printer.Print(resp.Data)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD or ISO datetime)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD or ISO datetime)")
	return cmd
}

func (a *app) campaignRepliesCommand() *cobra.Command {
	var f bison.ReplyFilter
	cmd := &cobra.Command{
		Use:   "replies CAMPAIGN_ID",
		Short: "List replies received by a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("read") && cmd.Flags().Changed("unread") {
				return bisonerrors.Validation("read", "cannot be combined with --unread")
			}
			f.Read = optionalBool(cmd.Flags(), "read")
			if f.Read == nil && cmd.Flags().Changed("unread") {
				unread, _ := cmd.Flags().GetBool("unread")
				read := !unread
				f.Read = &read
			}
			if err := requirePositive("tag-id", f.TagIDs); err != nil {
				return err
			}
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.CampaignReplies(ctx, id, f)
				if err != nil {
					return err
				}
				return a.printer.Print(resp.Data)
			})
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "Search text")
	cmd.Flags().StringVar(&f.Status, "status", "", "Reply status, e.g. interested")
	cmd.Flags().StringVar(&f.Folder, "folder", "", "Folder, e.g. inbox")
	cmd.Flags().Bool("read", false, "Only read replies")
	cmd.Flags().Bool("unread", false, "Only unread replies")
	cmd.Flags().IntVar(&f.SenderEmailID, "sender-email-id", 0, "Filter by sender account id")
	cmd.Flags().IntVar(&f.LeadID, "lead-id", 0, "Filter by lead id")
	cmd.Flags().IntSliceVar(&f.TagIDs, "tag-id", nil, "Filter by tag id (repeatable)")
	return cmd
}

func (a *app) campaignStopFutureEmailsCommand() *cobra.Command {
	var leadIDs []int
	cmd := &cobra.Command{
		Use:   "stop-future-emails CAMPAIGN_ID",
		Short: "Stop sending to the given leads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(leadIDs) == 0 {
				return bisonerrors.Validation("lead-id", "at least one lead id is required")
			}
			if err := requirePositive("lead-id", leadIDs); err != nil {
				return err
			}
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.StopFutureEmails(ctx, id, leadIDs)
				if err != nil {
					return err
				}
				return a.printResponse(resp, fmt.Sprintf("Stopped future emails for %d lead(s) in campaign %d.", len(leadIDs), id))
			})
		},
	}
	cmd.Flags().IntSliceVar(&leadIDs, "lead-id", nil, "Lead id (repeatable)")
	return cmd
}

func (a *app) campaignSenderEmailsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sender-emails CAMPAIGN_ID",
		Short: "List sender accounts attached to a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.CampaignSenderEmails(ctx, id)
				if err != nil {
					return err
				}
				return a.printer.Print(resp.Data)
			})
		},
	}
}

// campaignSenderChangeCommand builds attach-sender-emails and remove-sender-emails.
func (a *app) campaignSenderChangeCommand(use, short, verb string, call func(*bison.API, context.Context, int, []int) (*bisonhttp.Response, error)) *cobra.Command {
	var ids []int
	cmd := &cobra.Command{
		Use:   use + " CAMPAIGN_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return bisonerrors.Validation("sender-email-id", "at least one sender email id is required")
			}
			if err := requirePositive("sender-email-id", ids); err != nil {
				return err
			}
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := call(api, ctx, id, ids)
				if err != nil {
					return err
				}
				return a.printResponse(resp, fmt.Sprintf("%s %d sender email(s) on campaign %d.", verb, len(ids), id))
			})
		},
	}
	cmd.Flags().IntSliceVar(&ids, "sender-email-id", nil, "Sender email id (repeatable)")
	return cmd
}

// withCampaign parses a campaign id argument and runs fn with a client.
func (a *app) withCampaign(ctx context.Context, rawID string, fn func(context.Context, *bison.API, int) error) error {
	id, err := parseID("campaign_id", rawID)
	if err != nil {
		return err
	}
	api, _, err := a.client()
	if err != nil {
		return err
	}
	return fn(ctx, api, id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
