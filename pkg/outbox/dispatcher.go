package outbox

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// Alerter is the narrow slice of pkg/alerting.Service the dispatcher needs.
// Declared here, not imported, so pkg/outbox doesn't depend on Slack at all
// when no alerting is configured — a nil Alerter is a valid, silent no-op.
type Alerter interface {
	NotifyDeadLetter(ctx context.Context, input DeadLetterAlert)
}

// DeadLetterAlert carries the fields an Alerter needs to describe one
// dead-lettered event without depending on domain.OutboxEvent's shape.
type DeadLetterAlert struct {
	EventID     string
	EventType   string
	LastError   string
	Fingerprint string
}

// Store is the subset of postgres.OutboxRepo the dispatcher needs. Declared
// here (rather than imported from pkg/storage/postgres) so pkg/outbox stays
// storage-agnostic, mirroring how the teacher's queue.SessionExecutor is an
// interface the worker depends on rather than a concrete executor type.
type Store interface {
	ClaimNext(ctx context.Context) (domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, nextAttempt time.Time) error
	MarkDeadLetter(ctx context.Context, id string) error
}

// ErrNoEventsAvailable is Store's "nothing claimable right now" sentinel.
var ErrNoEventsAvailable = domain.ErrNoPendingOutboxEvents

// DispatcherConfig tunes poll cadence and retry budget. Defaults mirror
// spec.md §4.1. Dead-letter TTL archival is a separate concern, owned by
// pkg/cleanup.
type DispatcherConfig struct {
	WorkerCount        int
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
	MaxRetries         int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
}

// DefaultDispatcherConfig returns spec.md §4.1's defaults: 4 workers, 2s
// base poll, exponential backoff base 2 capped at 30s, max 3 retries.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:        4,
		PollInterval:       2 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
		MaxRetries:         3,
		InitialBackoff:     500 * time.Millisecond,
		MaxBackoff:         30 * time.Second,
	}
}

// Dispatcher runs the poll loop. Grounded on the teacher's
// pkg/queue/worker.go Worker.run/pollAndProcess shape: a stop channel, a
// WaitGroup per worker goroutine, and an error-classified sleep-or-continue
// body.
type Dispatcher struct {
	store    Store
	registry *Registry
	cfg      DispatcherConfig
	alerter  Alerter

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(store Store, registry *Registry, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// WithAlerter attaches an operator-alert sink notified whenever an event is
// dead-lettered. Optional — a Dispatcher with no Alerter just skips the call.
func (d *Dispatcher) WithAlerter(a Alerter) *Dispatcher {
	d.alerter = a
	return d
}

// Start launches cfg.WorkerCount poll goroutines, returning immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}
}

// Stop signals every goroutine to exit and waits for them to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, workerIdx int) {
	defer d.wg.Done()
	log := slog.With("component", "outbox_dispatcher", "worker", workerIdx)
	log.Info("dispatcher worker started")

	for {
		select {
		case <-d.stopCh:
			log.Info("dispatcher worker stopping")
			return
		case <-ctx.Done():
			return
		default:
			if err := d.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoEventsAvailable) {
					d.sleep(d.pollInterval())
					continue
				}
				log.Error("dispatcher poll error", "error", err)
				d.sleep(time.Second)
			}
		}
	}
}

func (d *Dispatcher) sleep(duration time.Duration) {
	select {
	case <-d.stopCh:
	case <-time.After(duration):
	}
}

func (d *Dispatcher) pollInterval() time.Duration {
	base, jitter := d.cfg.PollInterval, d.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// pollAndProcess claims one event and dispatches it to its handler.
func (d *Dispatcher) pollAndProcess(ctx context.Context) error {
	ev, err := d.store.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, ErrNoEventsAvailable) {
			return ErrNoEventsAvailable
		}
		return err
	}

	log := slog.With("event_id", ev.ID, "event_type", ev.EventType)

	handler, ok := d.registry.lookup(ev.EventType)
	if !ok {
		log.Error("no handler for event type, dead-lettering")
		if err := d.store.MarkDeadLetter(ctx, ev.ID); err != nil {
			return err
		}
		d.alertDeadLetter(ctx, ev, "no handler registered for event type")
		return nil
	}

	if err := handler(ctx, ev); err != nil {
		return d.handleFailure(ctx, ev, err, log)
	}

	log.Info("event published")
	return d.store.MarkPublished(ctx, ev.ID)
}

func (d *Dispatcher) handleFailure(ctx context.Context, ev domain.OutboxEvent, err error, log *slog.Logger) error {
	if resilience.IsPermanent(err) {
		log.Error("permanent handler failure, dead-lettering", "error", err)
		if dlErr := d.store.MarkDeadLetter(ctx, ev.ID); dlErr != nil {
			return dlErr
		}
		d.alertDeadLetter(ctx, ev, err.Error())
		return nil
	}

	nextRetryCount := ev.RetryCount + 1
	if nextRetryCount >= d.cfg.MaxRetries {
		log.Error("retry budget exhausted, dead-lettering", "error", err, "retry_count", nextRetryCount)
		if dlErr := d.store.MarkDeadLetter(ctx, ev.ID); dlErr != nil {
			return dlErr
		}
		d.alertDeadLetter(ctx, ev, err.Error())
		return nil
	}

	delay := d.backoffDelay(ev.RetryCount)
	log.Warn("transient handler failure, scheduling retry", "error", err, "retry_count", nextRetryCount, "delay", delay)
	return d.store.MarkFailed(ctx, ev.ID, time.Now().Add(delay))
}

func (d *Dispatcher) alertDeadLetter(ctx context.Context, ev domain.OutboxEvent, lastError string) {
	if d.alerter == nil {
		return
	}
	d.alerter.NotifyDeadLetter(ctx, DeadLetterAlert{
		EventID:     ev.ID,
		EventType:   string(ev.EventType),
		LastError:   lastError,
		Fingerprint: ev.ID,
	})
}

// backoffDelay computes the exponential-with-jitter delay before retry
// number attempt+1, base 2, capped at cfg.MaxBackoff (spec.md §4.1).
func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	raw := float64(d.cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	capped := math.Min(raw, float64(d.cfg.MaxBackoff))
	jitterFraction := 0.5 + rand.Float64()*0.5 // [0.5, 1.0) of the capped delay
	return time.Duration(capped * jitterFraction)
}
