// Package poller implements the caller-side poll/countdown loop that tracks
// one pending payment: a status query on a fixed interval and a one-second
// countdown against the server-issued deadline, sharing a single goroutine
// and a single cancellation context. It only reads and renders; the
// server-side reconciler remains the source of truth.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/sukruuzun/PayKript/models"
	"github.com/sukruuzun/PayKript/services"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Outcome says why the loop stopped.
type Outcome string

const (
	// OutcomeResolved: a poll observed a terminal status from the server.
	OutcomeResolved Outcome = "resolved"
	// OutcomeDeadline: the local countdown reached zero. The local clock is
	// advisory only; the caller re-fetches the authoritative state.
	OutcomeDeadline Outcome = "deadline"
	// OutcomeCancelled: the caller cancelled the context.
	OutcomeCancelled Outcome = "cancelled"
)

// ErrCheckTooSoon is returned by CheckNow when manual checks are requested
// faster than the configured minimum spacing.
var ErrCheckTooSoon = errors.New("manual check rate limited")

// Result is delivered exactly once when the loop terminates.
type Result struct {
	Outcome Outcome
	Status  models.PaymentStatus
}

// Snapshot is what the rendering layer consumes on every tick.
type Snapshot struct {
	Status           models.PaymentStatus
	RemainingSeconds int
	Address          string
	Amount           string
	Degraded         bool
}

// Config tunes the loop. Zero values take the reference behavior: poll every
// 10s, count down every 1s, manual checks at most every 3s, degraded after 3
// consecutive query failures.
type Config struct {
	PollInterval     time.Duration
	CountdownTick    time.Duration
	ManualMinSpacing time.Duration
	DegradedAfter    int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.ManualMinSpacing <= 0 {
		c.ManualMinSpacing = 3 * time.Second
	}
	if c.DegradedAfter <= 0 {
		c.DegradedAfter = 3
	}
}

// Poller tracks a single payment until it resolves, the deadline passes or
// the caller cancels.
type Poller struct {
	querier  services.StatusQuerier
	payment  models.Payment
	cfg      Config
	limiter  *rate.Limiter
	checkReq chan struct{}
	updates  chan Snapshot
	logger   *zap.Logger
}

func New(querier services.StatusQuerier, payment models.Payment, cfg Config, logger *zap.Logger) *Poller {
	cfg.applyDefaults()
	return &Poller{
		querier:  querier,
		payment:  payment,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.ManualMinSpacing), 1),
		checkReq: make(chan struct{}, 1),
		updates:  make(chan Snapshot, 1),
		logger:   logger,
	}
}

// Updates delivers the latest snapshot for rendering. Stale snapshots are
// dropped when the consumer lags; only the newest matters.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// CheckNow requests an immediate out-of-band status query without disturbing
// the interval timer. It is rate limited to the configured minimum spacing.
func (p *Poller) CheckNow() error {
	if !p.limiter.Allow() {
		return ErrCheckTooSoon
	}
	select {
	case p.checkReq <- struct{}{}:
	default:
	}
	return nil
}

// Run drives both activities until termination and returns the result. Both
// tickers stop on every exit path; cancelling ctx stops poll and countdown
// together on the next tick.
func (p *Poller) Run(ctx context.Context) Result {
	pollTicker := time.NewTicker(p.cfg.PollInterval)
	defer pollTicker.Stop()
	countdown := time.NewTicker(p.cfg.CountdownTick)
	defer countdown.Stop()

	failures := 0
	p.emit(p.payment.Status, p.remaining(), failures >= p.cfg.DegradedAfter)

	for {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeCancelled, Status: p.payment.Status}

		case <-countdown.C:
			remaining := p.remaining()
			p.emit(p.payment.Status, remaining, failures >= p.cfg.DegradedAfter)
			if remaining <= 0 {
				return Result{Outcome: OutcomeDeadline, Status: p.payment.Status}
			}

		case <-pollTicker.C:
			if done, result := p.poll(ctx, &failures); done {
				return result
			}

		case <-p.checkReq:
			if done, result := p.poll(ctx, &failures); done {
				return result
			}
		}
	}
}

// poll issues one status query. Terminal statuses stop the loop; transient
// failures are retried on the next tick and surfaced as degraded only after
// a few in a row.
func (p *Poller) poll(ctx context.Context, failures *int) (bool, Result) {
	status, err := p.querier.QueryStatus(ctx, p.payment.PaymentID.String())
	if err != nil {
		*failures++
		p.logger.Warn("Status query failed",
			zap.String("payment_id", p.payment.PaymentID.String()),
			zap.Int("consecutive_failures", *failures),
			zap.Error(err),
		)
		p.emit(p.payment.Status, p.remaining(), *failures >= p.cfg.DegradedAfter)
		return false, Result{}
	}
	*failures = 0

	p.payment.Status = status.Status
	if !status.ExpiresAt.IsZero() {
		p.payment.ExpiresAt = status.ExpiresAt
	}
	p.emit(status.Status, p.remaining(), false)

	if status.Status.IsTerminal() {
		return true, Result{Outcome: OutcomeResolved, Status: status.Status}
	}
	return false, Result{}
}

// remaining compares the server-issued deadline against the local clock.
func (p *Poller) remaining() int {
	return int(time.Until(p.payment.ExpiresAt) / time.Second)
}

func (p *Poller) emit(status models.PaymentStatus, remaining int, degraded bool) {
	if remaining < 0 {
		remaining = 0
	}
	snap := Snapshot{
		Status:           status,
		RemainingSeconds: remaining,
		Address:          p.payment.Address,
		Amount:           p.payment.Amount,
		Degraded:         degraded,
	}
	// Replace a stale unconsumed snapshot instead of blocking the loop.
	select {
	case p.updates <- snap:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- snap:
		default:
		}
	}
}
