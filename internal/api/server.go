// Package api exposes the application lifecycle, ledger and hired view over
// HTTP. Caller identity arrives in headers set by the upstream session layer.
package api

import (
	"context"
	"time"

	"staffing/internal/hired"
	"staffing/internal/ledger"
	"staffing/internal/metrics"
	"staffing/internal/registry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const (
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorRole  = "X-Actor-Role"
)

type Options struct {
	RequestTimeout time.Duration
}

type Server struct {
	app      *fiber.App
	logger   *zap.Logger
	registry *registry.Service
	ledger   *ledger.Service
	hired    *hired.View
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewServer(
	logger *zap.Logger,
	reg *registry.Service,
	led *ledger.Service,
	view *hired.View,
	m *metrics.Metrics,
	opts Options,
) *Server {
	s := &Server{
		logger:   logger,
		registry: reg,
		ledger:   led,
		hired:    view,
		metrics:  m,
		timeout:  opts.RequestTimeout,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "staffing",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.observe)
	s.app.Use(s.deadline)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	s.app.Post("/applications", s.submitApplication)
	s.app.Get("/applications/:id", s.getApplication)
	s.app.Post("/applications/:id/transitions", s.transitionApplication)
	s.app.Delete("/applications/:id", s.removeApplication)
	s.app.Post("/applications/:id/payments/recompute", s.recomputePayments)
	s.app.Get("/candidates/:email/applications", s.listCandidateApplications)

	s.app.Post("/payments", s.recordPayment)
	s.app.Get("/payments", s.queryPayments)

	s.app.Get("/jobs/:jobId/hired", s.listHired)
}

// App returns the underlying fiber app, used by tests through app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// observe renders handler errors itself so the recorded status is the one the
// client receives.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	route := c.Route().Path
	status := c.Response().StatusCode()
	s.metrics.HTTPRequest(c.Method(), route, status, time.Since(start))
	s.logger.Debug("request served",
		zap.String("method", c.Method()),
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)))
	return nil
}

func (s *Server) deadline(c *fiber.Ctx) error {
	if s.timeout <= 0 {
		return c.Next()
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

func actorFrom(c *fiber.Ctx) registry.Actor {
	return registry.Actor{
		Email: c.Get(HeaderActorEmail),
		Role:  c.Get(HeaderActorRole),
	}
}
