package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/lock"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

type reply struct {
	text string
	err  error
}

// scriptedModel answers analysis prompts from a queue and follow-up prompts
// with a fixed reply.
type scriptedModel struct {
	mu       sync.Mutex
	analyses []reply
	followUp reply
	prompts  []string
}

func (m *scriptedModel) Complete(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if system == FollowUpSystemPrompt {
		return m.followUp.text, m.followUp.err
	}
	m.prompts = append(m.prompts, user)
	if len(m.analyses) == 0 {
		return "", errors.New("no scripted analysis left")
	}
	next := m.analyses[0]
	m.analyses = m.analyses[1:]
	return next.text, next.err
}

type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
	updates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tickets: make(map[int64]domain.Ticket)}
}

func (s *memoryStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ticket.ID = s.nextID
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *memoryStore) Update(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *memoryStore) get(id int64) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.TicketSnapshot
}

func (n *recordingNotifier) NotifyEscalation(_ context.Context, ticket domain.TicketSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ticket)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordTriage(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[operation+"|"+outcome]++
}

func analysisText(category, confidence string) string {
	return fmt.Sprintf("CATEGORY: %s\nCONFIDENCE: %s\nRESPONSE:\n"+
		"Understanding: the user cannot connect\nDiagnosis: stale DHCP lease\n"+
		"Steps to Resolve:\n1. renew the lease\n2. restart the adapter\n"+
		"Additional Notes: none\nNext Steps: call the helpdesk", category, confidence)
}

type fixture struct {
	model    *scriptedModel
	store    *memoryStore
	notifier *recordingNotifier
	metrics  *countingRecorder
	policy   *Policy
}

func newFixture(completer Completer) *fixture {
	f := &fixture{
		store:    newMemoryStore(),
		notifier: &recordingNotifier{},
		metrics:  &countingRecorder{},
	}
	if completer == nil {
		f.model = &scriptedModel{followUp: reply{text: "false"}}
		completer = f.model
	}
	f.policy = NewPolicy(Dependencies{
		Completer: completer,
		Tickets:   f.store,
		Notifier:  f.notifier,
		Locker:    lock.NewKeyedMutex(),
		Metrics:   f.metrics,
	})
	return f
}

func (f *fixture) queue(replies ...reply) {
	f.model.mu.Lock()
	defer f.model.mu.Unlock()
	f.model.analyses = append(f.model.analyses, replies...)
}

func submitInput() SubmitInput {
	return SubmitInput{
		Name:        "Ada",
		Email:       "ada@example.com",
		Description: "My laptop cannot reach the office wifi",
		Category:    domain.CategoryUncategorized,
	}
}

func TestSubmit_ConfidentAnalysisOpensTicket(t *testing.T) {
	f := newFixture(nil)
	f.queue(reply{text: analysisText("network", "0.85")})

	result, err := f.policy.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	assert.False(t, result.RequiresHuman)
	assert.Equal(t, domain.TicketStatusOpen, result.Ticket.Status)
	assert.Equal(t, domain.CategoryNetwork, result.Ticket.Category)
	assert.Equal(t, 0.85, result.Ticket.ConfidenceScore)
	assert.Contains(t, result.Ticket.AIResponse, "Diagnosis: stale DHCP lease")
	assert.Equal(t, 0, f.notifier.count())
	assert.Equal(t, "My laptop cannot reach the office wifi", f.model.prompts[0])
}

func TestSubmit_LowConfidenceEscalatesAndNotifiesOnce(t *testing.T) {
	f := newFixture(nil)
	f.queue(reply{text: analysisText("hardware", "0.65")})

	result, err := f.policy.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	stored := f.store.get(result.Ticket.ID)
	assert.True(t, stored.RequiresHumanAttention)
	assert.Equal(t, domain.TicketStatusPendingReview, stored.Status)
	require.Equal(t, 1, f.notifier.count())

	snapshot := f.notifier.sent[0]
	assert.Equal(t, result.Ticket.ID, snapshot.ID)
	assert.Equal(t, "Ada", snapshot.Name)
	assert.Equal(t, "ada@example.com", snapshot.Email)
	assert.Equal(t, domain.CategoryHardware, snapshot.Category)
	assert.Equal(t, 0.65, snapshot.ConfidenceScore)
	assert.Equal(t, stored.AIResponse, snapshot.AIResponse)
}

func TestSubmit_ModelErrorYieldsFallbackTuple(t *testing.T) {
	f := newFixture(nil)
	f.queue(reply{err: errors.New("dial tcp: connection refused")})

	result, err := f.policy.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	response, confidence, category := result.Analysis.Tuple()
	assert.Equal(t, "I apologize, but I'm having trouble analyzing this ticket.", response)
	assert.Equal(t, 0.0, confidence)
	assert.Equal(t, "error", category)
	assert.Equal(t, FailureModel, result.Analysis.Failure)

	assert.Equal(t, domain.CategoryError, result.Ticket.Category)
	assert.Equal(t, domain.TicketStatusPendingReview, result.Ticket.Status)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 1, f.metrics.counts["submit|fallback_model"])
}

func TestSubmit_ParseErrorYieldsFallbackTuple(t *testing.T) {
	f := newFixture(nil)
	f.queue(reply{text: analysisText("network", "very high")})

	result, err := f.policy.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	assert.Equal(t, FailureParse, result.Analysis.Failure)
	assert.Equal(t, FallbackResponse, result.Ticket.AIResponse)
	assert.True(t, result.RequiresHuman)
}

func TestSubmit_CategoryResolution(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback domain.TicketCategory
		want     domain.TicketCategory
	}{
		{"model category", analysisText("Access", "0.9"), domain.CategoryUncategorized, domain.CategoryAccess},
		{"unknown model category", analysisText("printers", "0.9"), domain.CategoryNetwork, domain.CategoryOther},
		{"caller fallback", "CONFIDENCE: 0.9\nRESPONSE:\nUnderstanding: x", domain.CategorySoftware, domain.CategorySoftware},
		{"invalid fallback", "CONFIDENCE: 0.9", domain.TicketCategory("misc"), domain.CategoryUncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.queue(reply{text: tt.raw})
			input := submitInput()
			input.Category = tt.fallback

			result, err := f.policy.Submit(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Ticket.Category)
		})
	}
}

func TestHandleMessage_EscalationLatchAndMonotonicConfidence(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.queue(
		reply{text: analysisText("network", "0.8")},
		reply{text: analysisText("network", "0.65")},
		reply{text: analysisText("network", "0.9")},
	)

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)
	id := submitted.Ticket.ID
	require.Equal(t, 0.8, f.store.get(id).ConfidenceScore)
	require.Equal(t, 0, f.notifier.count())

	first, err := f.policy.HandleMessage(ctx, id, "still broken")
	require.NoError(t, err)
	assert.True(t, first.Escalated)
	stored := f.store.get(id)
	assert.Equal(t, 0.65, stored.ConfidenceScore)
	assert.True(t, stored.RequiresHumanAttention)
	assert.Equal(t, domain.TicketStatusPendingReview, stored.Status)
	assert.Equal(t, 1, f.notifier.count())

	second, err := f.policy.HandleMessage(ctx, id, "it works now?")
	require.NoError(t, err)
	assert.False(t, second.Escalated)
	stored = f.store.get(id)
	assert.Equal(t, 0.65, stored.ConfidenceScore)
	assert.True(t, stored.RequiresHumanAttention)
	assert.Equal(t, 1, f.notifier.count())
}

func TestHandleTurn_RecordsWhileTicketLocked(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.queue(reply{text: analysisText("network", "0.9")}, reply{text: analysisText("network", "0.4")})

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)
	id := submitted.Ticket.ID

	var recorded *MessageResult
	var lockErr error
	result, err := f.policy.HandleTurn(ctx, id, "still broken", func(ctx context.Context, turn *MessageResult) {
		recorded = turn
		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		unlock, err := f.policy.locker.Lock(waitCtx, lockKey(id))
		if err == nil {
			unlock()
		}
		lockErr = err
	})
	require.NoError(t, err)

	require.NotNil(t, recorded)
	assert.Error(t, lockErr)
	assert.True(t, recorded.Escalated)
	assert.Equal(t, result.Response, recorded.Response)
	assert.Equal(t, 0.4, recorded.Ticket.ConfidenceScore)
	assert.Equal(t, domain.TicketStatusPendingReview, recorded.Ticket.Status)
}

func TestHandleMessage_BuildsConversationHistory(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.queue(reply{text: analysisText("network", "0.9")}, reply{text: analysisText("network", "0.9")})

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)

	_, err = f.policy.HandleMessage(ctx, submitted.Ticket.ID, "I renewed the lease")
	require.NoError(t, err)

	prompt := f.model.prompts[1]
	assert.Contains(t, prompt, "Previous Conversation:")
	assert.Contains(t, prompt, "Initial Issue: My laptop cannot reach the office wifi")
	assert.Contains(t, prompt, "Initial AI Response: Understanding: the user cannot connect")
	assert.Contains(t, prompt, "Current Status: open")
	assert.Contains(t, prompt, "Current Message:\nI renewed the lease")
}

func TestHandleMessage_FailedAnalysisEscalatesButKeepsResponse(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.queue(reply{text: analysisText("network", "0.9")}, reply{err: errors.New("timeout")})

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)

	result, err := f.policy.HandleMessage(ctx, submitted.Ticket.ID, "anything?")
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, FallbackResponse, result.Response)
	stored := f.store.get(submitted.Ticket.ID)
	assert.Equal(t, 0.0, stored.ConfidenceScore)
	assert.Equal(t, submitted.Ticket.AIResponse, stored.AIResponse)
	assert.Equal(t, 1, f.notifier.count())
}

func TestHandleMessage_UnknownTicket(t *testing.T) {
	f := newFixture(nil)
	_, err := f.policy.HandleMessage(context.Background(), 42, "hello")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestHandleMessage_FollowUpAugmentation(t *testing.T) {
	tests := []struct {
		name     string
		followUp reply
		message  string
		want     []string
		notWant  []string
	}{
		{
			name:     "follow-up with both triggers",
			followUp: reply{text: "True"},
			message:  "I get an Error Message and Outlook is NOT WORKING",
			want: []string{
				"To better assist you, could you please provide more details about:",
				"- The exact error message you're seeing",
				"- When did this issue start?",
				"- Have you made any recent changes to your system?",
			},
		},
		{
			name:     "follow-up without triggers",
			followUp: reply{text: "true"},
			message:  "printer is jammed",
			want:     []string{"To better assist you"},
			notWant:  []string{"exact error message", "When did this issue start?"},
		},
		{
			name:     "no follow-up ignores triggers",
			followUp: reply{text: "false"},
			message:  "error message everywhere, not working",
			notWant:  []string{"To better assist you", "exact error message"},
		},
		{
			name:     "follow-up check failure asks anyway",
			followUp: reply{err: errors.New("rate limited")},
			message:  "not working",
			want:     []string{"To better assist you", "When did this issue start?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.model.followUp = tt.followUp
			ctx := context.Background()
			f.queue(reply{text: analysisText("software", "0.9")}, reply{text: analysisText("software", "0.9")})

			submitted, err := f.policy.Submit(ctx, submitInput())
			require.NoError(t, err)
			result, err := f.policy.HandleMessage(ctx, submitted.Ticket.ID, tt.message)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(result.Response, result.Analysis.Response))
			for _, s := range tt.want {
				assert.Contains(t, result.Response, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, result.Response, s)
			}
			assert.NotContains(t, f.store.get(submitted.Ticket.ID).AIResponse, "To better assist you")
		})
	}
}

func TestAugmentResponse_Order(t *testing.T) {
	got := AugmentResponse("base", "error message and not working")
	assert.Equal(t, "base"+
		"\n\nTo better assist you, could you please provide more details about:"+
		"\n- The exact error message you're seeing"+
		"\n- When did this issue start?"+
		"\n- Have you made any recent changes to your system?", got)
}

func TestNeedsFollowUp(t *testing.T) {
	tests := []struct {
		reply reply
		want  bool
	}{
		{reply{text: "true"}, true},
		{reply{text: "TRUE."}, true},
		{reply{text: "Answer: true"}, true},
		{reply{text: "false"}, false},
		{reply{text: ""}, false},
		{reply{err: errors.New("boom")}, true},
	}
	for _, tt := range tests {
		f := newFixture(nil)
		f.model.followUp = tt.reply
		assert.Equal(t, tt.want, f.policy.NeedsFollowUp(context.Background(), "vpn drops"), "reply %+v", tt.reply)
	}
}

func TestEscalate_NotifiesOnlyOnTransition(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.queue(reply{text: analysisText("access", "0.95")})

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)

	ticket, escalated, err := f.policy.Escalate(ctx, submitted.Ticket.ID)
	require.NoError(t, err)
	assert.True(t, escalated)
	assert.True(t, ticket.RequiresHumanAttention)
	assert.Equal(t, domain.TicketStatusPendingReview, ticket.Status)
	assert.Equal(t, 1, f.notifier.count())

	updates := f.store.updates
	_, escalated, err = f.policy.Escalate(ctx, submitted.Ticket.ID)
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, updates, f.store.updates)
}

func TestHandleMessage_ConcurrentMessagesKeepInvariants(t *testing.T) {
	// The message text carries the confidence the model should report.
	completer := completerFunc(func(_ context.Context, system, user string) (string, error) {
		if system == FollowUpSystemPrompt {
			return "false", nil
		}
		idx := strings.LastIndex(user, "conf=")
		if idx < 0 {
			return analysisText("network", "0.95"), nil
		}
		return analysisText("network", strings.Fields(user[idx+len("conf="):])[0]), nil
	})
	f := newFixture(completer)
	ctx := context.Background()

	submitted, err := f.policy.Submit(ctx, submitInput())
	require.NoError(t, err)
	id := submitted.Ticket.ID

	confidences := []string{"0.9", "0.69", "0.8", "0.55", "0.99", "0.6", "0.3", "0.75", "0.68", "0.85"}
	var wg sync.WaitGroup
	for _, c := range confidences {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			_, err := f.policy.HandleMessage(ctx, id, "conf="+c+" please help")
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()

	stored := f.store.get(id)
	assert.Equal(t, 0.3, stored.ConfidenceScore)
	assert.True(t, stored.RequiresHumanAttention)
	assert.Equal(t, domain.TicketStatusPendingReview, stored.Status)
	assert.Equal(t, 1, f.notifier.count())
}

func TestSubmit_LogsReportedAndScoredConfidence(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	model := &scriptedModel{
		analyses: []reply{{text: "CATEGORY: network\nCONFIDENCE: 0.95\nRESPONSE:\nReboot the router"}},
		followUp: reply{text: "false"},
	}
	policy := NewPolicy(Dependencies{
		Completer: model,
		Tickets:   newMemoryStore(),
		Locker:    lock.NewKeyedMutex(),
		Logger:    zap.New(core),
	})

	result, err := policy.Submit(context.Background(), submitInput())
	require.NoError(t, err)

	entries := logs.FilterMessage("ticket analysed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "submit", fields["operation"])
	assert.Equal(t, 0.95, fields["raw_confidence"])
	assert.Equal(t, result.Analysis.Confidence, fields["confidence"])
	assert.Less(t, result.Analysis.Confidence, 0.95)
}
