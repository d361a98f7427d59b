package llm

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

// NewCompleter picks the completion backend for cfg. A nil cache client
// disables response caching.
func NewCompleter(cfg config.AgentConfig, cache *redis.Client, logger *zap.Logger) (triage.Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var completer triage.Completer
	if cfg.Mock {
		logger.Info("using scripted completions", zap.String("model", "mock"))
		completer = ScriptedCompleter{}
	} else {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.APIKey == "" {
			logger.Warn("AGENT_API_KEY not provided; model calls will likely be rejected")
		}
		completer = client
	}

	if ttl := cfg.CacheTTL(); ttl > 0 && cache != nil {
		completer = NewCachedCompleter(completer, cache, ttl, logger)
	}
	return completer, nil
}
