package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/metrics"
)

// ErrRefMissing is returned by a Sink when the update target no longer
// exists (externally deleted). The publisher reacts by creating a
// replacement destination.
var ErrRefMissing = errors.New("render target missing")

// Sink is the opaque result destination: a view can be created at a fresh
// reference or updated at a known one.
type Sink interface {
	Create(ctx context.Context, view domain.RenderedView) (string, error)
	Update(ctx context.Context, ref string, view domain.RenderedView) error
}

// RecordWriter persists the poll record after the publisher rewrites its
// results reference.
type RecordWriter interface {
	Save(ctx context.Context, p *domain.Poll) error
}

// Broadcaster fans a rendered view out to live subscribers. Optional.
type Broadcaster interface {
	PublishView(pollID string, view domain.RenderedView)
}

// Publisher owns the results-destination lifecycle: create on first render,
// update in place afterwards, recreate when the destination was deleted
// externally. Calls are idempotent and safe to repeat, which is what makes
// finalization retryable. The sink sits behind a circuit breaker because
// rendering is best-effort and a dead destination must not slow down votes.
type Publisher struct {
	sink        Sink
	records     RecordWriter
	broadcaster Broadcaster
	breaker     *gobreaker.CircuitBreaker
}

func New(sink Sink, records RecordWriter, broadcaster Broadcaster) *Publisher {
	settings := gobreaker.Settings{
		Name:    "results-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Results sink breaker state changed", "from", from.String(), "to", to.String())
			metrics.SinkBreakerState.Set(breakerStateValue(to))
		},
		// A deleted destination is not a sink failure; the sink is healthy
		// and the publisher recreates the target right away.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRefMissing)
		},
	}

	return &Publisher{
		sink:        sink,
		records:     records,
		broadcaster: broadcaster,
		breaker:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Publish renders the current aggregate and delivers it. Called on every
// accepted vote and, with final=true, exactly once per poll at close.
func (p *Publisher) Publish(ctx context.Context, poll *domain.Poll, final bool) error {
	view := Render(poll, final)
	metrics.RendersTotal.WithLabelValues(renderKind(final)).Inc()

	if p.broadcaster != nil {
		p.broadcaster.PublishView(poll.ID, view)
	}

	if poll.ResultsRef == "" {
		return p.createDestination(ctx, poll, view)
	}

	err := p.update(ctx, poll.ResultsRef, view)
	if errors.Is(err, ErrRefMissing) {
		slog.Info("Results destination gone, creating replacement", "poll_id", poll.ID, "ref", poll.ResultsRef)
		return p.createDestination(ctx, poll, view)
	}
	return err
}

func (p *Publisher) createDestination(ctx context.Context, poll *domain.Poll, view domain.RenderedView) error {
	ref, err := p.create(ctx, view)
	if err != nil {
		return fmt.Errorf("create results destination for poll %s: %w", poll.ID, err)
	}

	poll.ResultsRef = ref
	if err := p.records.Save(ctx, poll); err != nil {
		return fmt.Errorf("persist results ref for poll %s: %w", poll.ID, err)
	}
	return nil
}

func (p *Publisher) create(ctx context.Context, view domain.RenderedView) (string, error) {
	ref, err := p.breaker.Execute(func() (any, error) {
		return p.sink.Create(ctx, view)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

func (p *Publisher) update(ctx context.Context, ref string, view domain.RenderedView) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.sink.Update(ctx, ref, view)
	})
	return err
}

func renderKind(final bool) string {
	if final {
		return "final"
	}
	return "live"
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
