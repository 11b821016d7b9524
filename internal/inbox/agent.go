package inbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/polzovatel/inbox-responder/internal/journal"
	"github.com/polzovatel/inbox-responder/internal/reply"
)

// Recorder persists reply cycles. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

type Config struct {
	Selectors Selectors
	Timings   Timings
	// MinLength is the longest message (in characters) still ignored.
	MinLength int
	// RepliesPerMinute caps sent replies; zero disables the cap.
	RepliesPerMinute int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Agent wires signals, recovery, extraction and the reply cycle together.
type Agent struct {
	cfg      Config
	selector reply.Selector
	recorder Recorder
	logger   zerolog.Logger

	gate       *Gate
	lock       *TypingLock
	recovery   *Recovery
	extractor  *Extractor
	dispatcher *Dispatcher
	limiter    *rate.Limiter

	deliveries chan struct{}
	wg         sync.WaitGroup
}

// New builds an agent. recorder may be nil.
func New(cfg Config, page Page, selector reply.Selector, recorder Recorder, logger zerolog.Logger) *Agent {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Inf
	burst := 1
	if cfg.RepliesPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RepliesPerMinute))
		burst = cfg.RepliesPerMinute
	}
	lock := &TypingLock{}
	return &Agent{
		cfg:        cfg,
		selector:   selector,
		recorder:   recorder,
		logger:     logger,
		gate:       NewGate(cfg.Timings, cfg.Now),
		lock:       lock,
		recovery:   NewRecovery(page, cfg.Selectors, cfg.Timings, lock, logger.With().Str("sub", "recovery").Logger()),
		extractor:  NewExtractor(page, cfg.Selectors, cfg.Timings, cfg.MinLength, cfg.Now),
		dispatcher: NewDispatcher(page, cfg.Selectors, cfg.Timings),
		limiter:    rate.NewLimiter(limit, burst),
		deliveries: make(chan struct{}, 1),
	}
}

// Lock exposes the typing lock so callers can observe reply cycles.
func (a *Agent) Lock() *TypingLock { return a.lock }

// Signal feeds a raw UI signal. It never blocks and is safe to call from
// browser callbacks.
func (a *Agent) Signal(kind SignalKind) {
	switch kind {
	case SignalMutation:
		a.gate.Mutation()
	case SignalDelivery:
		select {
		case a.deliveries <- struct{}{}:
		default:
		}
	}
}

// Run processes signals and the periodic sweep until ctx is done, then waits
// for in-flight work to stop.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Timings.SweepInterval)
	defer ticker.Stop()
	defer a.wg.Wait()

	a.logger.Info().Dur("sweep", a.cfg.Timings.SweepInterval).Msg("watching inbox")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.deliveries:
			if a.gate.BeginSettle() {
				a.spawn(ctx, a.settle)
			}
		case <-ticker.C:
			a.spawn(ctx, func(ctx context.Context) { a.recover(ctx, "sweep") })
		}
	}
}

func (a *Agent) spawn(ctx context.Context, fn func(context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(ctx)
	}()
}

// settle waits for the UI to catch up with a delivery, then either checks
// the thread directly or runs a recovery first.
func (a *Agent) settle(ctx context.Context) {
	if err := sleep(ctx, a.cfg.Timings.DeliverySettle); err != nil {
		a.gate.EndSettle(true)
		return
	}
	decision := a.gate.EndSettle(a.lock.Held())
	a.logger.Debug().Stringer("decision", decision).Msg("delivery settled")
	if decision == DecideRecover {
		a.recover(ctx, "stale")
		return
	}
	a.check(ctx, "delivery", false)
}

func (a *Agent) recover(ctx context.Context, reason string) {
	finished, err := a.recovery.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Debug().Err(err).Str("reason", reason).Msg("recovery stopped")
	}
	if !finished {
		return
	}
	a.gate.RecoveryFinished()
	a.Check(ctx, reason)
}

// Check extracts the latest message and runs a reply cycle for it. It is a
// no-op while a reply cycle holds the lock or another check is in flight.
// Check is forced: only the short check spacing applies.
func (a *Agent) Check(ctx context.Context, trigger string) {
	a.check(ctx, trigger, true)
}

func (a *Agent) check(ctx context.Context, trigger string, forced bool) {
	if a.lock.Held() {
		a.logger.Debug().Str("trigger", trigger).Msg("reply in progress, check skipped")
		return
	}
	if !a.gate.BeginCheck(forced) {
		a.logger.Debug().Str("trigger", trigger).Bool("forced", forced).Msg("check throttled")
		return
	}
	obs, outcome, err := a.extractor.Extract(ctx)
	a.gate.EndCheck()

	if err != nil {
		a.logger.Warn().Err(err).Str("trigger", trigger).Msg("extraction failed")
		return
	}
	if outcome != OutcomeObserved {
		a.logger.Debug().Str("trigger", trigger).Stringer("outcome", outcome).Msg("nothing to answer")
		return
	}
	a.replyTo(ctx, obs)
}

// replyTo runs one reply cycle. The observation is dropped if another cycle
// holds the lock; the next check re-reads the live thread anyway.
func (a *Agent) replyTo(ctx context.Context, obs reply.Observation) {
	token, ok := a.lock.TryAcquire()
	if !ok {
		a.logger.Debug().Str("sender", obs.SenderName).Msg("reply in progress, observation dropped")
		return
	}
	defer token.Release()

	cycle := uuid.NewString()
	logger := a.logger.With().
		Str("cycle", cycle).
		Str("sender", obs.SenderName).
		Bool("first", obs.FirstMessage).
		Logger()
	logger.Info().Str("message", obs.MessageText).Msg("new message")

	text, ok, err := a.selector.Select(ctx, obs)
	if err != nil {
		logger.Error().Err(err).Msg("select reply")
		return
	}
	if !ok {
		logger.Info().Msg("no reply rule matched")
		return
	}

	entry := journal.Entry{
		CycleID:      cycle,
		Sender:       obs.SenderName,
		Incoming:     obs.MessageText,
		Reply:        text,
		FirstMessage: obs.FirstMessage,
		Backend:      a.selector.Backend(),
		Outcome:      journal.OutcomeSent,
	}
	if !a.limiter.Allow() {
		logger.Warn().Msg("reply rate limit reached, message skipped")
		entry.Outcome = journal.OutcomeRateLimited
	} else if err := a.dispatcher.Send(ctx, text); err != nil {
		logger.Error().Err(err).Msg("send reply")
		entry.Outcome = journal.OutcomeFailed
		entry.Error = err.Error()
	} else {
		logger.Info().Str("reply", text).Msg("reply sent")
	}
	a.record(ctx, logger, entry)
}

func (a *Agent) record(ctx context.Context, logger zerolog.Logger, entry journal.Entry) {
	if a.recorder == nil {
		return
	}
	entry.At = a.cfg.Now()
	if err := a.recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("journal reply")
	}
}
