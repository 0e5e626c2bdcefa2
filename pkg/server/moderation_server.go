package server

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/diagramforge/sentry/pkg/config"
	handlers "github.com/diagramforge/sentry/pkg/handlers/http"
)

type (
	ModerationServerDI struct {
		HandlerTransport handlers.HandlerTransport
		Config           *config.Config
		Logger           *logrus.Logger
		MetricsRegistry  *prometheus.Registry
	}
	ModerationServer struct {
		*BaseServer
		handlerTransport handlers.HandlerTransport
		metricsRegistry  *prometheus.Registry
	}
)

func NewModerationServer(di ModerationServerDI) *ModerationServer {
	return &ModerationServer{
		BaseServer:       NewBaseServer(di.Config, di.Logger),
		handlerTransport: di.HandlerTransport,
		metricsRegistry:  di.MetricsRegistry,
	}
}

func (s *ModerationServer) Run() error {
	s.setupRoutes()
	s.setupHealthCheck()
	s.setupMetricsEndpoint(s.metricsRegistry)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithField("addr", addr).Info("starting moderation server")
	return s.router.Listen(addr)
}

func (s *ModerationServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.Post("/moderations", s.handlerTransport.ModerationHandler.Handle)
		v1.Get("/moderations/:content_id/log", s.handlerTransport.ModerationLogHandler.Handle)
		v1.Post("/moderations/:content_id/review", s.handlerTransport.AdminReviewHandler.Handle)
		v1.Get("/quota/:user_id", s.handlerTransport.QuotaHandler.Handle)
	}
}

func (s *ModerationServer) Shutdown() error {
	return s.router.Shutdown()
}
