// Package server exposes the streaming pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pyhub-apps/pdfstream-golang/internal/config"
	"github.com/pyhub-apps/pdfstream-golang/internal/observability"
	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/stream"
)

// PasswordHeader carries the document password on upload requests.
const PasswordHeader = "X-PDF-Password"

// Server serves the pdfstream HTTP API.
type Server struct {
	app            *fiber.App
	lib            *stream.Library
	cfg            config.ServerConfig
	defaultVersion int
	log            *observability.Logger
}

// New creates a Server over a started Library.
func New(lib *stream.Library, cfg *config.Config, log *observability.Logger) *Server {
	if log == nil {
		log = observability.Nop()
	}
	s := &Server{
		lib:            lib,
		cfg:            cfg.Server,
		defaultVersion: cfg.JSON.DefaultVersion,
		log:            log.WithStr("component", "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pdfstream",
		BodyLimit:             int(cfg.Server.MaxUpload),
		StreamRequestBody:     true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.middleware()
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) middleware() {
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  s.cfg.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, " + PasswordHeader,
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))
	// Cross-origin isolation lets browser hosts share memory with workers.
	s.app.Use(func(c *fiber.Ctx) error {
		c.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Set("Cross-Origin-Embedder-Policy", "require-corp")
		return c.Next()
	})
	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		s.log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	})
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	v1 := s.app.Group("/v1")
	v1.Post("/info", s.info)
	v1.Post("/text", s.text)
	v1.Post("/json", s.json)
	v1.Post("/save", s.save)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listen(s.cfg.Addr)
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("server listening")

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("server shutting down")
	if err := s.app.ShutdownWithTimeout(s.cfg.GracefulShutdown); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch pdf.KindOf(err) {
	case pdf.KindInvalidInput:
		return fiber.StatusBadRequest
	case pdf.KindLoad:
		return fiber.StatusUnprocessableEntity
	case pdf.KindUnsupported:
		return fiber.StatusNotImplemented
	case pdf.KindInit:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(pdf.KindOf(err)),
	})
}
