// Package logsink provides log-only implementations of the result sink and
// ballot display, used when no webhook is configured. Refs are real and
// stable so the full create/update lifecycle still runs in development.
package logsink

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/poll"
)

type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (*Sink) Create(_ context.Context, view domain.RenderedView) (string, error) {
	ref := uuid.NewString()
	slog.Info("Results view created", "ref", ref, "title", view.Title, "lines", strings.Join(view.Lines, " | "), "final", view.Final)
	return ref, nil
}

func (*Sink) Update(_ context.Context, ref string, view domain.RenderedView) error {
	slog.Info("Results view updated", "ref", ref, "title", view.Title, "lines", strings.Join(view.Lines, " | "), "final", view.Final)
	return nil
}

type Display struct{}

func NewDisplay() *Display { return &Display{} }

func (*Display) AttachBallot(_ context.Context, p *domain.Poll) (string, error) {
	ref := uuid.NewString()
	tokens := make([]string, len(p.Options))
	for i := range p.Options {
		tokens[i] = poll.VoteToken(i, p.ID)
	}
	slog.Info("Ballot attached", "ref", ref, "poll_id", p.ID, "tokens", strings.Join(tokens, " "))
	return ref, nil
}

func (*Display) DisableBallot(_ context.Context, p *domain.Poll) error {
	slog.Info("Ballot disabled", "poll_id", p.ID, "ref", p.DisplayRef)
	return nil
}
