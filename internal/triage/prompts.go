package triage

import (
	"fmt"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

const AnalysisSystemPrompt = `You are an experienced IT support professional. Your role is to:
1. Analyze IT support tickets thoroughly
2. Ask relevant follow-up questions when needed
3. Provide detailed troubleshooting steps
4. Track issue resolution progress

Important Guidelines:
- Always acknowledge the user's problem first
- Ask follow-up questions when:
  * The issue description is vague
  * More technical details are needed
  * Previous steps didn't resolve the issue
- For each solution:
  * Start with simple steps
  * Progress to more complex solutions
  * Include expected outcomes
  * Mention potential risks or warnings

When responding, follow this format:
CATEGORY: <network|hardware|software|access|other>
CONFIDENCE: <score between 0 and 1>
RESPONSE:
Understanding: <brief summary of the issue>
Diagnosis: <likely cause based on symptoms>
Initial Questions: <if more information is needed>
Steps to Resolve:
1. <first step with expected outcome>
2. <second step with expected outcome>
3. <additional steps as needed>
Additional Notes: <warnings, alternative solutions, or escalation criteria>
Next Steps: <what to do if these steps don't resolve the issue>`

const FollowUpSystemPrompt = "You are an IT support analyst. Determine if this issue description needs follow-up questions. Respond with only 'true' or 'false'."

func analysisUserPrompt(message, history string) string {
	if history == "" {
		return message
	}
	return fmt.Sprintf(`Previous Conversation:
%s

Current Message:
%s

Provide a response that takes into account the previous conversation and any steps already attempted.`, history, message)
}

func followUpUserPrompt(message string) string {
	return "Does this IT support issue need follow-up questions? Issue: " + message
}

// ConversationHistory summarises a ticket for a follow-up analysis.
func ConversationHistory(ticket *domain.Ticket) string {
	return fmt.Sprintf("Initial Issue: %s\nInitial AI Response: %s\nCurrent Status: %s",
		ticket.Description, ticket.AIResponse, ticket.Status)
}
