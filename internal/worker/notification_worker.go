package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-triage/internal/notify"
)

const (
	defaultQueueSize   = 100
	defaultWorkers     = 2
	defaultMaxAttempts = 3
	sendTimeout        = 30 * time.Second
)

// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker delivers escalation notices off the request path.
type NotificationWorker struct {
	queue       chan notify.Message
	senders     []notify.Sender
	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	delivered atomic.Int64
	failed    atomic.Int64
}

// Options tunes a NotificationWorker.
type Options struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// NewNotificationWorker builds a worker; call Run to start delivering.
func NewNotificationWorker(senders []notify.Sender, opts Options, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &NotificationWorker{
		queue:       make(chan notify.Message, opts.QueueSize),
		senders:     senders,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      logger,
	}
}

// Enqueue schedules msg without blocking.
func (w *NotificationWorker) Enqueue(msg notify.Message) error {
	select {
	case w.queue <- msg:
		return nil
	default:
		w.logger.Warn("notification dropped", zap.Int64("ticket_id", msg.Ticket.ID), zap.Error(ErrQueueFull))
		return ErrQueueFull
	}
}

// Run processes the queue until ctx is cancelled. Messages still queued at
// that point are delivered once more on a short deadline before returning.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("senders", len(w.senders)))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg := <-w.queue:
					w.deliver(gctx, msg)
				}
			}
		})
	}
	_ = g.Wait()

	w.drain()
	w.logger.Info("notification worker stopped")
	return nil
}

func (w *NotificationWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	for {
		select {
		case msg := <-w.queue:
			w.send(ctx, msg, w.senders)
		default:
			return
		}
	}
}

// deliver retries only the senders that have not yet accepted msg.
func (w *NotificationWorker) deliver(ctx context.Context, msg notify.Message) {
	pending := w.senders
	delay := w.backoff
	for {
		var err error
		pending, err = w.send(ctx, msg, pending)
		if len(pending) == 0 {
			return
		}
		msg.Attempts++
		if msg.Attempts >= w.maxAttempts {
			w.failed.Add(1)
			w.logger.Error("notification failed permanently",
				zap.Int64("ticket_id", msg.Ticket.ID), zap.Int("attempts", msg.Attempts), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// send tries each pending sender once. It returns the senders that failed
// and their joined errors.
func (w *NotificationWorker) send(ctx context.Context, msg notify.Message, pending []notify.Sender) ([]notify.Sender, error) {
	var failed []notify.Sender
	var errs []error
	for _, sender := range pending {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := sender.Send(sendCtx, msg)
		cancel()
		if err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("sender", sender.Name()), zap.Int64("ticket_id", msg.Ticket.ID), zap.Error(err))
			failed = append(failed, sender)
			errs = append(errs, err)
		}
	}
	if len(failed) == 0 {
		w.delivered.Add(1)
	}
	return failed, errors.Join(errs...)
}

// Stats returns delivered and permanently failed message counts.
func (w *NotificationWorker) Stats() (delivered, failed int64) {
	return w.delivered.Load(), w.failed.Load()
}
