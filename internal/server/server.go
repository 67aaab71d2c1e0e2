// Пакет server — HTTP-сервер OAI-провайдера с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/oai-provider/internal/api/errors"
	"github.com/bigkaa/goartstore/oai-provider/internal/config"
)

// Handler — обработчики маршрутов сервера.
// Реализуется handlers.APIHandler.
type Handler interface {
	ServeOAI(w http.ResponseWriter, r *http.Request)
	HealthLive(w http.ResponseWriter, r *http.Request)
	HealthReady(w http.ResponseWriter, r *http.Request)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// Server — HTTP-сервер OAI-провайдера.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// middlewares — дополнительные middleware (metrics, logging), добавляются в порядке переданного среза.
func New(cfg *config.Config, logger *slog.Logger, handler Handler, middlewares ...func(http.Handler) http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(handler, middlewares...),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер: /oai (GET, POST), health endpoints и /metrics.
func NewRouter(handler Handler, middlewares ...func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.Get("/oai", handler.ServeOAI)
	router.Post("/oai", handler.ServeOAI)
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.MethodNotAllowed(w, fmt.Sprintf("Метод %s не поддерживается для %s", r.Method, r.URL.Path))
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
