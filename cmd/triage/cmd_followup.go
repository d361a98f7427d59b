package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFollowUpCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "followup <message>",
		Short: "Report whether a message needs follow-up questions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return fmt.Errorf("message must not be empty")
			}

			agent, logger, err := newAgent(root)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%t\n", agent.NeedsFollowUp(ctx, message))
			return nil
		},
	}
}
