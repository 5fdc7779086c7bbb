// Package httpserver is the HTTP transport in front of the poll engine.
// It translates requests into engine calls and engine outcomes into status
// codes; nothing in here mutates poll state directly.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pollwatch/pollwatch/internal/broadcast"
	"github.com/pollwatch/pollwatch/internal/config"
	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/poll"
)

// pollService is the subset of the engine the transport needs.
type pollService interface {
	CreatePoll(ctx context.Context, req poll.CreatePollRequest) (*domain.Poll, error)
	CastVote(ctx context.Context, pollID, voterID string, optionIndex int) (*domain.Poll, error)
	CastVoteToken(ctx context.Context, token, voterID string) (*domain.Poll, error)
	GetPoll(ctx context.Context, pollID string) (*domain.Poll, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	engine pollService
	hub    *broadcast.Hub
	clock  clockwork.Clock
}

func NewServer(cfg *config.Config, engine pollService, hub *broadcast.Hub, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		engine: engine,
		hub:    hub,
		clock:  clock,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
