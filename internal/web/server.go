package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
	"github.com/vitos/gridpool/internal/usecase"
)

// Server exposes the read-only status surface, a small admin surface for
// the operator, and the websocket event stream.
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	service *usecase.GridService
	repo    domain.GridRepository
	hub     *Hub
	logger  *zap.Logger

	// operator identity used for admin calls; owner checks happen in the
	// service, not here
	operator string
}

func NewServer(
	port int,
	operator string,
	service *usecase.GridService,
	repo domain.GridRepository,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		service:  service,
		repo:     repo,
		hub:      hub,
		logger:   logger,
		operator: operator,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /config", s.handleConfig)

	// Levels
	s.router.HandleFunc("GET /levels", s.handleListLevels)
	s.router.HandleFunc("GET /levels/{index}", s.handleGetLevel)
	s.router.HandleFunc("POST /levels/{index}/activate", s.handleActivateLevel)
	s.router.HandleFunc("POST /levels/{index}/deactivate", s.handleDeactivateLevel)
	s.router.HandleFunc("POST /levels/{index}/reset-cooldown", s.handleResetCooldown)

	// Executions
	s.router.HandleFunc("GET /executions", s.handleExecutions)
	s.router.HandleFunc("GET /reports", s.handleReports)

	// Automation
	s.router.HandleFunc("GET /upkeep", s.handleCheckUpkeep)

	// Admin
	s.router.HandleFunc("POST /pause", s.handlePause)
	s.router.HandleFunc("POST /unpause", s.handleUnpause)

	// Event stream
	s.router.HandleFunc("GET /ws", s.hub.handleWS)
}

func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
