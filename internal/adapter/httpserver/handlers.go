package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/poll"
	"github.com/pollwatch/pollwatch/internal/publish"
)

type createPollRequest struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Duration  string   `json:"duration"`
	OriginRef string   `json:"origin_ref,omitempty"`
}

type createPollResponse struct {
	ID      string    `json:"id"`
	EndTime time.Time `json:"end_time"`
}

type castVoteRequest struct {
	VoterID string `json:"voter_id"`
	Option  *int   `json:"option,omitempty"`
	Token   string `json:"token,omitempty"`
}

type voteResponse struct {
	Status string `json:"status"`
	Option string `json:"option"`
}

type pollResponse struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Options   []string    `json:"options"`
	Votes     map[int]int `json:"votes"`
	Voters    int         `json:"voters"`
	CreatedAt time.Time   `json:"created_at"`
	EndTime   time.Time   `json:"end_time"`
	Closed    bool        `json:"closed"`
	Finalized bool        `json:"finalized"`
}

func (s *Server) handleCreatePoll(c echo.Context) error {
	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	p, err := s.engine.CreatePoll(c.Request().Context(), poll.CreatePollRequest{
		Question:  req.Question,
		Options:   req.Options,
		Duration:  req.Duration,
		OriginRef: req.OriginRef,
	})
	if err != nil {
		return s.rejectOrFail(c, err, "Failed to create poll")
	}

	return c.JSON(http.StatusCreated, createPollResponse{ID: p.ID, EndTime: p.EndTime})
}

func (s *Server) handleCastVote(c echo.Context) error {
	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if req.VoterID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("voter_id is required"))
	}
	if req.Option == nil {
		return c.JSON(http.StatusBadRequest, errorBody("option is required"))
	}

	p, err := s.engine.CastVote(c.Request().Context(), c.Param("id"), req.VoterID, *req.Option)
	if err != nil {
		return s.rejectOrFail(c, err, "Failed to cast vote")
	}

	return c.JSON(http.StatusOK, voteResponse{Status: "accepted", Option: p.Options[*req.Option]})
}

func (s *Server) handleCastVoteToken(c echo.Context) error {
	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if req.VoterID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("voter_id is required"))
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, errorBody("token is required"))
	}

	p, err := s.engine.CastVoteToken(c.Request().Context(), req.Token, req.VoterID)
	if err != nil {
		return s.rejectOrFail(c, err, "Failed to cast vote")
	}

	optionIndex, _, _ := poll.ParseVoteToken(req.Token)
	return c.JSON(http.StatusOK, voteResponse{Status: "accepted", Option: p.Options[optionIndex]})
}

func (s *Server) handleGetPoll(c echo.Context) error {
	p, err := s.engine.GetPoll(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.rejectOrFail(c, err, "Failed to load poll")
	}

	return c.JSON(http.StatusOK, pollResponse{
		ID:        p.ID,
		Question:  p.Question,
		Options:   p.Options,
		Votes:     p.Votes,
		Voters:    len(p.Voters),
		CreatedAt: p.CreatedAt,
		EndTime:   p.EndTime,
		Closed:    p.Closed(s.clock.Now()),
		Finalized: p.Finalized,
	})
}

func (s *Server) handleGetResults(c echo.Context) error {
	p, err := s.engine.GetPoll(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.rejectOrFail(c, err, "Failed to load poll")
	}
	return c.JSON(http.StatusOK, publish.Render(p, p.Finalized))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// rejectOrFail maps expected rejections to their status codes without
// logging them as faults; anything else is a real failure.
func (s *Server) rejectOrFail(c echo.Context, err error, logMessage string) error {
	if status, ok := rejectionStatus(err); ok {
		return c.JSON(status, errorBody(err.Error()))
	}

	slog.Error(logMessage, "path", c.Request().URL.Path, "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func rejectionStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrAlreadyVoted):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrPollClosed):
		return http.StatusGone, true
	case errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidOptions):
		return http.StatusBadRequest, true
	default:
		return 0, false
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
