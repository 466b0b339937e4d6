package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emailbison/bison"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

func (a *app) sequenceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Manage campaign sequence steps",
	}
	cmd.AddCommand(
		a.sequenceGetCommand(),
		a.sequenceSetCommand(),
		a.sequenceUpdateCommand(),
		a.sequenceDeleteStepCommand(),
		a.sequenceTestEmailCommand(),
	)
	return cmd
}

func (a *app) sequenceGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get CAMPAIGN_ID",
		Short: "Show the sequence of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.GetSequenceSteps(ctx, id)
				if err != nil {
					return err
				}
				return a.printer.Print(resp.Data)
			})
		},
	}
}

func (a *app) sequenceSetCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set CAMPAIGN_ID --file sequence.yaml",
		Short: "Create the sequence of a campaign from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := loadSequenceFlag(file)
			if err != nil {
				return err
			}
			return a.withCampaign(cmd.Context(), args[0], func(ctx context.Context, api *bison.API, id int) error {
				resp, err := api.CreateSequenceSteps(ctx, id, *seq)
				if err != nil {
					return err
				}
				return a.printResponse(resp, fmt.Sprintf("Created %d sequence step(s) on campaign %d.", len(seq.Steps), id))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Sequence file (.json, .yaml or .yml)")
	return cmd
}

func (a *app) sequenceUpdateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update SEQUENCE_ID --file sequence.yaml",
		Short: "Replace the steps of an existing sequence",
		Long:  "Replace the steps of an existing sequence. Steps that carry an id are updated in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seqID, err := parseID("sequence_id", args[0])
			if err != nil {
				return err
			}
			seq, err := loadSequenceFlag(file)
			if err != nil {
				return err
			}
			api, _, err := a.client()
			if err != nil {
				return err
			}
			resp, err := api.UpdateSequenceSteps(cmd.Context(), seqID, *seq)
			if err != nil {
				return err
			}
			return a.printResponse(resp, fmt.Sprintf("Updated sequence %d.", seqID))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Sequence file (.json, .yaml or .yml)")
	return cmd
}

func (a *app) sequenceDeleteStepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-step STEP_ID",
		Short: "Delete one sequence step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepID, err := parseID("step_id", args[0])
			if err != nil {
				return err
			}
			api, _, err := a.client()
			if err != nil {
				return err
			}
			resp, err := api.DeleteSequenceStep(cmd.Context(), stepID)
			if err != nil {
				return err
			}
			return a.printResponse(resp, fmt.Sprintf("Deleted sequence step %d.", stepID))
		},
	}
}

func (a *app) sequenceTestEmailCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "test-email STEP_ID --email you@example.com",
		Short: "Send a sequence step to a test address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepID, err := parseID("step_id", args[0])
			if err != nil {
				return err
			}
			if email == "" {
				return bisonerrors.Validation("email", "is required")
			}
			api, _, err := a.client()
			if err != nil {
				return err
			}
			resp, err := api.SendTestEmail(cmd.Context(), stepID, email)
			if err != nil {
				return err
			}
			return a.printResponse(resp, fmt.Sprintf("Sent step %d to %s.", stepID, email))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Address to send the test to")
	return cmd
}

func loadSequenceFlag(file string) (*bison.Sequence, error) {
	if file == "" {
		return nil, bisonerrors.Validation("file", "is required")
	}
	return bison.LoadSequence(file)
}
