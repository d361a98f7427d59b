package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

func newAnalyzeCmd(root *rootFlags) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "analyze <description>",
		Short: "Categorise a support request and suggest a response",
		Example: `  triage analyze --mock "My laptop cannot connect to the office wifi"
  triage analyze --history="Initial Issue: vpn drops" "It still disconnects every hour"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				return fmt.Errorf("description must not be empty")
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
			analysis := agent.AnalyzeTicket(ctx, description, history)
			printAnalysis(cmd, analysis)
			return nil
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "Earlier conversation to analyse the request against")
	return cmd
}

func printAnalysis(cmd *cobra.Command, analysis triage.Analysis) {
	out := cmd.OutOrStdout()

	category := analysis.Category
	if category == "" {
		category = "(none)"
	}
	escalate := "no"
	if analysis.Confidence < triage.EscalationThreshold {
		escalate = "yes"
	}

	fmt.Fprintf(out, "Category:   %s\n", category)
	fmt.Fprintf(out, "Confidence: %.2f\n", analysis.Confidence)
	fmt.Fprintf(out, "Reported:   %.2f\n", analysis.RawConfidence)
	fmt.Fprintf(out, "Escalate:   %s\n", escalate)
	if analysis.Failed() {
		fmt.Fprintf(out, "Failure:    %s\n", analysis.Failure)
	}
	fmt.Fprintf(out, "\n%s\n", analysis.Response)
}
