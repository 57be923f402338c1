package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"
	"github.com/sukruuzun/PayKript/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type scriptedQuerier struct {
	mu        sync.Mutex
	responses []*services.ProcessorStatus
	errs      []error
	calls     int
}

// QueryStatus plays back the scripted responses in order, repeating the last
// one once the script runs out.
func (q *scriptedQuerier) QueryStatus(ctx context.Context, paymentID string) (*services.ProcessorStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.calls
	q.calls++
	if i >= len(q.responses) {
		i = len(q.responses) - 1
	}
	if i < len(q.errs) && q.errs[i] != nil {
		return nil, q.errs[i]
	}
	return q.responses[i], nil
}

func (q *scriptedQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func trackedPayment(expiresIn time.Duration) models.Payment {
	return models.Payment{
		PaymentID: uuid.New(),
		OrderID:   "42",
		Address:   "TTestAddress",
		Amount:    "10.5",
		Currency:  "USDT",
		Status:    models.StatusPending,
		ExpiresAt: time.Now().Add(expiresIn),
	}
}

func fastConfig() Config {
	return Config{
		PollInterval:     30 * time.Millisecond,
		CountdownTick:    10 * time.Millisecond,
		ManualMinSpacing: 50 * time.Millisecond,
		DegradedAfter:    3,
	}
}

func runPoller(p *Poller, ctx context.Context) <-chan Result {
	done := make(chan Result, 1)
	go func() { done <- p.Run(ctx) }()
	return done
}

func waitResult(t *testing.T, done <-chan Result) Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not terminate")
		return Result{}
	}
}

func TestRun_ResolvesWhenPollSeesTerminalStatus(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending},
		{Status: models.StatusConfirmed, TxHash: "abc123"},
	}}
	p := New(querier, trackedPayment(time.Hour), fastConfig(), zap.NewNop())

	res := waitResult(t, runPoller(p, context.Background()))
	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, models.StatusConfirmed, res.Status)
}

func TestRun_DeadlineStopsBothActivities(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending},
	}}
	p := New(querier, trackedPayment(100*time.Millisecond), fastConfig(), zap.NewNop())

	res := waitResult(t, runPoller(p, context.Background()))
	assert.Equal(t, OutcomeDeadline, res.Outcome)
	assert.Equal(t, models.StatusPending, res.Status, "local deadline is advisory, not a transition")

	// The loop is gone: no further queries happen.
	calls := querier.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, querier.callCount())
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending},
	}}
	p := New(querier, trackedPayment(time.Hour), fastConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := runPoller(p, ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()

	res := waitResult(t, done)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestRun_CountdownTracksServerDeadline(t *testing.T) {
	// The server extends the deadline on the first poll; the countdown must
	// follow the server-issued value instead of the stale local one.
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending, ExpiresAt: time.Now().Add(time.Hour)},
	}}
	p := New(querier, trackedPayment(120*time.Millisecond), fastConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runPoller(p, ctx)

	select {
	case res := <-done:
		t.Fatalf("loop stopped early with %v after the deadline was extended", res.Outcome)
	case <-time.After(300 * time.Millisecond):
	}
	cancel()
	res := waitResult(t, done)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestCheckNow_RateLimited(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending},
	}}
	p := New(querier, trackedPayment(time.Hour), Config{
		PollInterval:     time.Hour,
		CountdownTick:    10 * time.Millisecond,
		ManualMinSpacing: time.Hour,
	}, zap.NewNop())

	assert.NoError(t, p.CheckNow())
	assert.ErrorIs(t, p.CheckNow(), ErrCheckTooSoon, "second check inside the spacing window")
}

func TestCheckNow_TriggersImmediateQuery(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusConfirmed, TxHash: "abc123"},
	}}
	// Poll interval far beyond the test horizon: only a manual check can
	// reach the querier.
	p := New(querier, trackedPayment(time.Hour), Config{
		PollInterval:     time.Hour,
		CountdownTick:    10 * time.Millisecond,
		ManualMinSpacing: time.Millisecond,
	}, zap.NewNop())

	done := runPoller(p, context.Background())
	assert.NoError(t, p.CheckNow())

	res := waitResult(t, done)
	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, 1, querier.callCount())
}

func TestRun_DegradedAfterConsecutiveFailures(t *testing.T) {
	querier := &scriptedQuerier{
		responses: []*services.ProcessorStatus{nil, nil, nil},
		errs:      []error{apperrors.ErrUnavailable, apperrors.ErrUnavailable, apperrors.ErrUnavailable},
	}
	p := New(querier, trackedPayment(time.Hour), Config{
		PollInterval:     15 * time.Millisecond,
		CountdownTick:    time.Hour,
		ManualMinSpacing: time.Hour,
		DegradedAfter:    3,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runPoller(p, ctx)

	degraded := false
	timeout := time.After(time.Second)
	for !degraded {
		select {
		case snap := <-p.Updates():
			degraded = snap.Degraded
		case <-timeout:
			t.Fatal("never became degraded")
		}
	}
	cancel()
	res := waitResult(t, done)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, models.StatusPending, res.Status, "failures never force a transition")
}

func TestUpdates_StaleSnapshotsReplaced(t *testing.T) {
	querier := &scriptedQuerier{responses: []*services.ProcessorStatus{
		{Status: models.StatusPending},
	}}
	p := New(querier, trackedPayment(500*time.Millisecond), Config{
		PollInterval:     time.Hour,
		CountdownTick:    10 * time.Millisecond,
		ManualMinSpacing: time.Hour,
	}, zap.NewNop())

	done := runPoller(p, context.Background())
	res := waitResult(t, done)
	assert.Equal(t, OutcomeDeadline, res.Outcome)

	// The consumer never read during the run; the buffered channel holds only
	// the newest snapshot instead of blocking the loop.
	select {
	case snap := <-p.Updates():
		assert.LessOrEqual(t, snap.RemainingSeconds, 1)
	default:
		t.Fatal("expected a final snapshot")
	}
}
