package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.Use(middleware.Recover())

	voteLimiter := voteRateLimiter(s.config.VoteRatePerSecond, s.config.VoteRateBurst)

	api := s.echo.Group("/api")
	api.POST("/polls", s.handleCreatePoll)
	api.GET("/polls/:id", s.handleGetPoll)
	api.GET("/polls/:id/results", s.handleGetResults)
	api.POST("/polls/:id/votes", s.handleCastVote, voteLimiter)
	api.POST("/votes", s.handleCastVoteToken, voteLimiter)

	s.echo.GET("/live/:id", s.handleLiveFeed)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
