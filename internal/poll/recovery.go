package poll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pollwatch/pollwatch/internal/metrics"
)

// Recover rebuilds the session table from the store at process start.
// Nothing in memory is assumed to have survived: expired unfinalized polls
// are driven through the closing transition immediately, open polls get a
// session with a timer for the remainder plus one live render so the view
// reflects votes persisted before the crash. Votes are never replayed; the
// persisted tallies already contain them, so running Recover against the
// same store twice yields the same tallies and no second final render.
func (e *Engine) Recover(ctx context.Context) error {
	polls, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("scan poll store: %w", err)
	}

	now := e.clock.Now()
	recovered, finalized := 0, 0

	for id, p := range polls {
		if sess, ok := e.sessions.get(id); ok {
			// A session stuck in Closing after a failed finalization gets
			// another attempt; Close is idempotent.
			if p.Closed(now) && !p.Finalized && sess.State() != Open {
				if err := sess.Close(ctx); err != nil {
					slog.Error("Poll finalization failed, left retryable", "poll_id", id, "error", err)
				} else {
					finalized++
				}
			}
			continue
		}

		switch {
		case p.Closed(now) && p.Finalized:
			// Fully closed, kept for audit only.

		case p.Closed(now):
			// Process was down across the deadline.
			e.finalizeNow(ctx, id)
			finalized++

		default:
			sess := e.register(id, p.EndTime.Sub(now))
			if err := sess.publishLive(ctx); err != nil {
				slog.Warn("Recovery render failed", "poll_id", id, "error", err)
				metrics.RenderFailuresTotal.Inc()
			}
			metrics.SessionsRecoveredTotal.Inc()
			recovered++
		}
	}

	slog.Info("Poll recovery complete", "total", len(polls), "resumed", recovered, "finalized", finalized)
	return nil
}
