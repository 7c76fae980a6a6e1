package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/freightworks/stowage/internal/core/features"
	"github.com/freightworks/stowage/internal/shell/allocator"
	"github.com/freightworks/stowage/internal/shell/api"
	"github.com/freightworks/stowage/internal/shell/cache"
	"github.com/freightworks/stowage/internal/shell/events"
	"github.com/freightworks/stowage/internal/shell/oracle"
	"github.com/freightworks/stowage/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitOracleError     = 3
	ExitHTTPServerError = 4
	ExitEventsError     = 5
)

// =============================================================================
// Server
// =============================================================================

// Server represents the Stowage application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	oracle     oracle.Oracle
	publisher  events.Publisher
	cache      cache.Cache
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Load the reliability model. A load failure is fatal unless the
	// degraded-mode fallback is explicitly enabled.
	var o oracle.Oracle
	model, err := oracle.Load(cfg.Oracle.ModelPath)
	if err != nil {
		if !cfg.Oracle.Fallback.Enabled {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitOracleError,
			}
		}
		logger.Warn("model artifact unavailable, running with neutral fallback oracle",
			"model_path", cfg.Oracle.ModelPath,
			"reliability", cfg.Oracle.Fallback.Reliability,
			"error", err,
		)
		o = oracle.NewNeutral(cfg.Oracle.Fallback.Reliability)
	} else {
		logger.Info("reliability model loaded",
			"model_path", cfg.Oracle.ModelPath,
			"version", model.Version(),
		)
		o = model
	}

	// Create the booking event publisher
	var publisher events.Publisher
	if cfg.Events.Enabled {
		amqpPublisher, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:   cfg.Events.URL,
			Queue: cfg.Events.Queue,
		})
		if err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitEventsError,
			}
		}
		publisher = amqpPublisher
		logger.Info("event publishing enabled", "queue", cfg.Events.Queue)
	} else {
		publisher = events.NewNoOpPublisher()
		logger.Info("event publishing disabled")
	}

	// Create the dashboard cache. An unreachable cache disables caching
	// rather than failing startup; the dashboard works without it.
	var dashboardCache cache.Cache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			logger.Warn("cache unreachable, dashboard caching disabled",
				"addr", cfg.Cache.Addr,
				"error", err,
			)
		} else {
			dashboardCache = redisCache
			logger.Info("dashboard caching enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	} else {
		logger.Info("dashboard caching disabled")
	}

	// Create the allocation service over the pure ranking core
	svc := allocator.NewService(s, o, features.NewFixedExtractor(), publisher, logger)

	// Create HTTP handler
	handler := api.NewHandler(s, svc, dashboardCache, cfg.Cache.TTL, logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		oracle:     o,
		publisher:  publisher,
		cache:      dashboardCache,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Close event publisher
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("event publisher close error", "error", err)
	}

	// Close cache
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache close error", "error", err)
		}
	}

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
