package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/metrics"
)

// State is the lifecycle of a live session: Open -> Closing -> Closed.
type State int

const (
	Open State = iota
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Publisher renders the current aggregate to the result destination.
type Publisher interface {
	Publish(ctx context.Context, p *domain.Poll, final bool) error
}

// Display attaches and disables the ballot affordances on the originating
// surface. Implementations own the meaning of the returned reference.
type Display interface {
	AttachBallot(ctx context.Context, p *domain.Poll) (string, error)
	DisableBallot(ctx context.Context, p *domain.Poll) error
}

// Session is the in-memory runtime object for one persisted poll. It is a
// disposable cache: everything it needs is reloaded from the store, and the
// per-session mutex is the per-poll ordering boundary. A vote and the
// deadline-closing transition on the same poll are totally ordered; votes on
// different polls proceed independently.
type Session struct {
	pollID    string
	store     Store
	publisher Publisher
	display   Display
	clock     clockwork.Clock

	mu       sync.Mutex
	state    State
	timer    clockwork.Timer
	onClosed func(pollID string)
}

func newSession(pollID string, store Store, publisher Publisher, display Display, clock clockwork.Clock, onClosed func(string)) *Session {
	return &Session{
		pollID:    pollID,
		store:     store,
		publisher: publisher,
		display:   display,
		clock:     clock,
		state:     Open,
		onClosed:  onClosed,
	}
}

// arm schedules the single deadline timer. Called once, right after
// construction, while no other goroutine can reach the session yet.
func (s *Session) arm(remaining time.Duration) {
	s.timer = s.clock.AfterFunc(remaining, func() {
		if err := s.Close(context.Background()); err != nil {
			slog.Error("Poll finalization failed, left retryable", "poll_id", s.pollID, "error", err)
		}
	})
}

// attachBallot attaches the vote affordances on the originating surface and
// persists the returned reference. It holds the session mutex and reloads
// the record first, so the ref save can never clobber a vote accepted while
// the outbound call was in flight.
func (s *Session) attachBallot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.display == nil || s.state != Open {
		return nil
	}

	p, err := s.store.Load(ctx, s.pollID)
	if err != nil {
		return err
	}
	ref, err := s.display.AttachBallot(ctx, p)
	if err != nil {
		return err
	}

	p.DisplayRef = ref
	return s.store.Save(ctx, p)
}

// publishLive renders the current aggregate under the session mutex. Used
// for the creation-time and recovery-time renders, which would otherwise
// race votes on the freshly live poll.
func (s *Session) publishLive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return nil
	}

	p, err := s.store.Load(ctx, s.pollID)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, p, false)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel stops the deadline timer. Hook for administrative teardown; it does
// not finalize the poll.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// CastVote applies one ballot for voterID. The check for a previous ballot
// and the tally mutation happen under the session mutex so a duplicate vote
// can never increment the tally, even under concurrent submission.
// Returns a snapshot of the record after the vote.
func (s *Session) CastVote(ctx context.Context, voterID string, optionIndex int) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return nil, domain.ErrPollClosed
	}

	p, err := s.store.Load(ctx, s.pollID)
	if err != nil {
		return nil, err
	}
	if p.Closed(s.clock.Now()) {
		// Deadline elapsed but the timer has not fired yet.
		return nil, domain.ErrPollClosed
	}
	if p.HasVoted(voterID) {
		return nil, domain.ErrAlreadyVoted
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return nil, domain.ErrInvalidOption
	}

	p.Votes[optionIndex]++
	p.Voters[voterID] = true
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("persist vote for poll %s: %w", s.pollID, err)
	}

	// The persisted record is the durable fact; rendering is best-effort.
	if err := s.publisher.Publish(ctx, p, false); err != nil {
		slog.Warn("Live render failed after vote", "poll_id", s.pollID, "error", err)
		metrics.RenderFailuresTotal.Inc()
	}

	return p.Clone(), nil
}

// Close drives the session through the closing transition: disable further
// votes, publish the final aggregate, persist the finalized flag. Safe to
// call repeatedly; a poll whose record is already finalized only flips the
// session to Closed. On render or persistence failure the session stays in
// Closing so a later recovery pass retries finalization.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return nil
	}
	s.state = Closing

	p, err := s.store.Load(ctx, s.pollID)
	if err != nil {
		return fmt.Errorf("load poll %s for closing: %w", s.pollID, err)
	}

	if p.Finalized {
		s.finish()
		return nil
	}

	if err := s.publisher.Publish(ctx, p, true); err != nil {
		return fmt.Errorf("final render for poll %s: %w", s.pollID, err)
	}

	if s.display != nil {
		if err := s.display.DisableBallot(ctx, p); err != nil {
			slog.Warn("Failed to disable ballot", "poll_id", s.pollID, "error", err)
		}
	}

	p.Finalized = true
	if err := s.store.Save(ctx, p); err != nil {
		return fmt.Errorf("persist finalized flag for poll %s: %w", s.pollID, err)
	}

	metrics.FinalizationsTotal.Inc()
	slog.Info("Poll finalized", "poll_id", s.pollID, "total_votes", p.TotalVotes())
	s.finish()
	return nil
}

func (s *Session) finish() {
	s.state = Closed
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.onClosed != nil {
		// Removes the registry entry; no further interaction is expected.
		s.onClosed(s.pollID)
	}
}
