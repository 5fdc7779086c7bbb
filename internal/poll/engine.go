// Package poll implements the time-bounded poll engine: durable records,
// per-poll sessions with deadline timers, vote collection, and recovery.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/metrics"
)

const (
	minOptions = 2
	maxOptions = 3
)

// Engine owns the process-wide table of live sessions. The table is a cache,
// never the source of truth: it is populated by Recover at startup, inserted
// into at creation, rebuilt on demand when a vote arrives for an unknown
// poll, and entries leave when a session reaches Closed.
type Engine struct {
	store     Store
	publisher Publisher
	display   Display
	clock     clockwork.Clock

	sessions    *registry
	rehydration singleflight.Group
}

func NewEngine(store Store, publisher Publisher, display Display, clock clockwork.Clock) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		display:   display,
		clock:     clock,
		sessions:  newRegistry(),
	}
}

// CreatePollRequest is the inbound creation call.
type CreatePollRequest struct {
	Question  string
	Options   []string
	Duration  string
	OriginRef string
}

// CreatePoll validates the request, persists a fresh record with zeroed
// tallies, attaches the ballot display, renders the initial live view, and
// starts the deadline timer.
func (e *Engine) CreatePoll(ctx context.Context, req CreatePollRequest) (*domain.Poll, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.ErrInvalidQuestion
	}
	if len(req.Options) < minOptions || len(req.Options) > maxOptions {
		return nil, domain.ErrInvalidOptions
	}
	for _, opt := range req.Options {
		if strings.TrimSpace(opt) == "" {
			return nil, domain.ErrInvalidOptions
		}
	}

	duration, err := ParseDuration(req.Duration)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	p := &domain.Poll{
		ID:        uuid.NewString(),
		Question:  req.Question,
		Options:   append([]string(nil), req.Options...),
		Votes:     make(map[int]int, len(req.Options)),
		Voters:    make(map[string]bool),
		CreatedAt: now,
		EndTime:   now.Add(duration),
		OriginRef: req.OriginRef,
	}
	for i := range p.Options {
		p.Votes[i] = 0
	}

	if err := e.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("persist new poll: %w", err)
	}

	// The session goes into the table before any outbound call. The ballot's
	// vote tokens are live the moment the display sees them, so every vote
	// must order through this session's mutex from the start; the attach and
	// initial render below hold that mutex and work on freshly loaded
	// records, so a vote accepted in between is never overwritten.
	sess := e.register(p.ID, duration)

	if err := sess.attachBallot(ctx); err != nil {
		slog.Warn("Failed to attach ballot display", "poll_id", p.ID, "error", err)
	}

	// Initial live view so the aggregate is visible before the first vote.
	if err := sess.publishLive(ctx); err != nil {
		slog.Warn("Initial render failed", "poll_id", p.ID, "error", err)
		metrics.RenderFailuresTotal.Inc()
	}

	metrics.PollsCreatedTotal.Inc()
	slog.Info("Poll created", "poll_id", p.ID, "options", len(p.Options), "ends_at", p.EndTime)

	created, err := e.store.Load(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reload created poll: %w", err)
	}
	return created, nil
}

// CastVote applies one ballot. A nil error means the vote was accepted;
// expected rejections come back as the domain sentinel errors.
func (e *Engine) CastVote(ctx context.Context, pollID, voterID string, optionIndex int) (*domain.Poll, error) {
	p, err := e.castVote(ctx, pollID, voterID, optionIndex)
	metrics.VotesTotal.WithLabelValues(voteOutcome(err)).Inc()
	return p, err
}

// CastVoteToken routes a vote through its correlation token
// ("vote_<optionIndex>_<pollID>").
func (e *Engine) CastVoteToken(ctx context.Context, token, voterID string) (*domain.Poll, error) {
	optionIndex, pollID, err := ParseVoteToken(token)
	if err != nil {
		metrics.VotesTotal.WithLabelValues("invalid_token").Inc()
		return nil, err
	}
	return e.CastVote(ctx, pollID, voterID, optionIndex)
}

func (e *Engine) castVote(ctx context.Context, pollID, voterID string, optionIndex int) (*domain.Poll, error) {
	sess, err := e.session(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return sess.CastVote(ctx, voterID, optionIndex)
}

// GetPoll returns the persisted record.
func (e *Engine) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	return e.store.Load(ctx, pollID)
}

// Cancel tears down a session's timer without finalizing it. Hook for
// administrative teardown.
func (e *Engine) Cancel(pollID string) {
	if sess, ok := e.sessions.get(pollID); ok {
		sess.Cancel()
		e.sessions.remove(pollID)
	}
}

// Stop cancels all deadline timers. Records stay durable; the sessions are
// rebuilt by Recover on the next start.
func (e *Engine) Stop() {
	for _, sess := range e.sessions.all() {
		sess.Cancel()
	}
}

// session returns the live session for pollID, rebuilding it from the store
// if this process has not seen the poll yet. Concurrent first votes collapse
// into a single rebuild via singleflight.
func (e *Engine) session(ctx context.Context, pollID string) (*Session, error) {
	if sess, ok := e.sessions.get(pollID); ok {
		return sess, nil
	}

	v, err, _ := e.rehydration.Do(pollID, func() (any, error) {
		if sess, ok := e.sessions.get(pollID); ok {
			return sess, nil
		}

		p, err := e.store.Load(ctx, pollID)
		if err != nil {
			return nil, err
		}

		now := e.clock.Now()
		if p.Closed(now) {
			if !p.Finalized {
				e.finalizeNow(ctx, pollID)
			}
			return nil, domain.ErrPollClosed
		}

		return e.register(pollID, p.EndTime.Sub(now)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// finalizeNow drives an expired, unfinalized poll through the closing
// transition immediately instead of scheduling a timer.
func (e *Engine) finalizeNow(ctx context.Context, pollID string) {
	sess, _ := e.sessions.putIfAbsent(pollID, newSession(pollID, e.store, e.publisher, e.display, e.clock, e.sessions.remove))
	if err := sess.Close(ctx); err != nil {
		// Stays in Closing; the next recovery pass retries.
		slog.Error("Poll finalization failed, left retryable", "poll_id", pollID, "error", err)
	}
}

func (e *Engine) register(pollID string, remaining time.Duration) *Session {
	sess, inserted := e.sessions.putIfAbsent(pollID, newSession(pollID, e.store, e.publisher, e.display, e.clock, e.sessions.remove))
	if inserted {
		sess.arm(remaining)
	}
	return sess
}

func voteOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domain.ErrPollNotFound):
		return "poll_not_found"
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrPollClosed):
		return "poll_closed"
	default:
		return "error"
	}
}
