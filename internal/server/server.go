package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/DeadSloth/mapon-backend-assignment/internal/config"
	"github.com/DeadSloth/mapon-backend-assignment/internal/handler"
	"github.com/DeadSloth/mapon-backend-assignment/internal/middleware"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

type Server struct {
	echo               *echo.Echo
	cfg                *config.Config
	logger             *logger.Logger
	transactionHandler *handler.TransactionHandler
	adminHandler       *handler.AdminHandler
	healthHandler      *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	transactionHandler *handler.TransactionHandler,
	adminHandler *handler.AdminHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:               e,
		cfg:                cfg,
		logger:             log,
		transactionHandler: transactionHandler,
		adminHandler:       adminHandler,
		healthHandler:      healthHandler,
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)

	s.echo.GET("/transactions", s.transactionHandler.List)
	s.echo.POST("/transactions/import", s.transactionHandler.Import)
	s.echo.POST("/transactions/enrich", s.transactionHandler.EnrichAll)
	s.echo.POST("/transactions/:id/enrich", s.transactionHandler.EnrichOne)
	s.echo.DELETE("/transactions", s.adminHandler.Clear)
}

// Handler returns the configured echo instance for httptest-based tests.
func (s *Server) Handler() *echo.Echo {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}
