package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/llm"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	mock    bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "triage",
		Short: "Analyse IT support requests with the triage agent",
		Long: `triage sends a support request through the same analysis used by the
helpdesk API and prints the category, confidence and suggested response.

The model is configured through the AGENT_* environment variables.
Pass --mock to use scripted completions instead of a live model.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.mock, "mock", false, "Use scripted completions instead of the configured model")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Write structured logs to stderr")

	root.AddCommand(newAnalyzeCmd(flags))
	root.AddCommand(newFollowUpCmd(flags))
	return root
}

// newAgent builds an agent from the environment configuration.
func newAgent(flags *rootFlags) (*triage.Agent, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if flags.verbose {
		cfg.Logger.Output = "stderr"
		if logger, err = observability.NewLogger(cfg.Logger); err != nil {
			return nil, nil, err
		}
	}

	agentCfg := cfg.Agent
	if flags.mock {
		agentCfg.Mock = true
	}
	completer, err := llm.NewCompleter(agentCfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return triage.NewAgent(completer, logger), logger, nil
}
