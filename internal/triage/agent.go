package triage

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Completer sends a system instruction and user content to a language model
// and returns the completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Agent wraps a Completer with the ticket-analysis and follow-up prompts.
type Agent struct {
	completer Completer
	logger    *zap.Logger
}

// NewAgent constructs an agent.
func NewAgent(completer Completer, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{completer: completer, logger: logger}
}

// AnalyzeTicket asks the model to analyse a description, optionally in the
// context of an earlier conversation. It never fails: model and parse errors
// produce FallbackAnalysis.
func (a *Agent) AnalyzeTicket(ctx context.Context, description, history string) Analysis {
	raw, err := a.completer.Complete(ctx, AnalysisSystemPrompt, analysisUserPrompt(description, history))
	if err != nil {
		a.logger.Error("ticket analysis failed", zap.String("failure", string(FailureModel)), zap.Error(err))
		return FallbackAnalysis(FailureModel)
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		a.logger.Error("ticket analysis failed", zap.String("failure", string(FailureParse)), zap.Error(err))
		return FallbackAnalysis(FailureParse)
	}
	return analysis
}

// NeedsFollowUp asks the model whether the message warrants follow-up
// questions. Any error answers true.
func (a *Agent) NeedsFollowUp(ctx context.Context, message string) bool {
	raw, err := a.completer.Complete(ctx, FollowUpSystemPrompt, followUpUserPrompt(message))
	if err != nil {
		a.logger.Warn("follow-up check failed; asking for more detail", zap.Error(err))
		return true
	}
	return strings.Contains(strings.ToLower(raw), "true")
}
