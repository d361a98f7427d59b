package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

var mockKeywords = []struct {
	category string
	words    []string
}{
	{"network", []string{"wifi", "wi-fi", "vpn", "internet", "network", "dns", "ethernet"}},
	{"access", []string{"password", "login", "log in", "account", "permission", "locked"}},
	{"hardware", []string{"printer", "laptop", "monitor", "keyboard", "mouse", "battery", "screen"}},
	{"software", []string{"install", "crash", "update", "outlook", "excel", "application", "app"}},
}

// ScriptedCompleter answers prompts without calling a model. Output is a
// deterministic function of the prompt so local runs and demos are
// reproducible.
type ScriptedCompleter struct{}

// Complete implements triage.Completer.
func (ScriptedCompleter) Complete(_ context.Context, system, user string) (string, error) {
	if system == triage.FollowUpSystemPrompt {
		return mockFollowUp(user), nil
	}
	return mockAnalysis(user), nil
}

func mockAnalysis(prompt string) string {
	message := prompt
	if idx := strings.Index(prompt, "Current Message:\n"); idx >= 0 {
		message = prompt[idx+len("Current Message:\n"):]
		if end := strings.Index(message, "\n\n"); end >= 0 {
			message = message[:end]
		}
	}
	lower := strings.ToLower(message)

	category := "other"
	for _, candidate := range mockKeywords {
		if containsAny(lower, candidate.words) {
			category = candidate.category
			break
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(lower))
	confidence := 0.75 + float64(h.Sum32()%20)/100
	if category == "other" || len(strings.Fields(message)) < 6 {
		confidence = 0.55
	}

	return fmt.Sprintf(`CATEGORY: %s
CONFIDENCE: %.2f
RESPONSE:
Understanding: You reported: %s
Diagnosis: This looks like a common %s issue.
Steps to Resolve:
1. Restart the affected device or application and check whether the problem persists.
2. Confirm that recent updates have been installed.
Additional Notes: Note any error messages you see while following these steps.
Next Steps: Reply to this ticket if the issue continues and a technician will follow up.`,
		category, confidence, strings.TrimSpace(message), category)
}

func mockFollowUp(prompt string) string {
	lower := strings.ToLower(prompt)
	if containsAny(lower, []string{"not working", "error", "broken", "doesn't work"}) {
		return "true"
	}
	return "false"
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
