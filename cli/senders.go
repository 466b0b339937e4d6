package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/emailbison/bison"
)

func (a *app) senderEmailsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sender-emails",
		Short: "Inspect sender accounts",
	}
	cmd.AddCommand(a.senderEmailsListCommand())
	return cmd
}

func (a *app) senderEmailsListCommand() *cobra.Command {
	var f bison.SenderFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sender accounts in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("tag-id", f.TagIDs); err != nil {
				return err
			}
			if err := requirePositive("excluded-tag-id", f.ExcludedTagIDs); err != nil {
				return err
			}
			f.WithoutTags = optionalBool(cmd.Flags(), "without-tags")

			api, _, err := a.client()
			if err != nil {
				return err
			}
			resp, err := api.ListSenderEmails(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printer.Print(resp.Data)
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "Search by address or name")
	cmd.Flags().IntSliceVar(&f.TagIDs, "tag-id", nil, "Only accounts with this tag (repeatable)")
	cmd.Flags().IntSliceVar(&f.ExcludedTagIDs, "excluded-tag-id", nil, "Skip accounts with this tag (repeatable)")
	cmd.Flags().Bool("without-tags", false, "Only accounts without tags")
	return cmd
}
