package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"studentattendance/internal/adapter/form"
	"studentattendance/internal/adapter/rest"
	"studentattendance/internal/attendance"
	"studentattendance/internal/audit"
	"studentattendance/internal/auth"
	"studentattendance/internal/config"
	"studentattendance/internal/httpmiddleware"
	"studentattendance/internal/logging"
	"studentattendance/internal/queue"
	"studentattendance/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("api stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("api exited")
}

func run(ctx context.Context, cfg config.App, log zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DataDir:     cfg.DataDir,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	}, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("backend", cfg.StoreBackend).Str("mode", cfg.AttendanceMode).Msg("store opened")

	health := map[string]rest.HealthCheck{"store": st.Ping}
	opts := []attendance.Option{
		attendance.WithMarkMode(attendance.ParseMarkMode(cfg.AttendanceMode)),
		attendance.WithLogger(log.With().Str("component", "tracker").Logger()),
	}

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.QueueBackend {
	case "redis":
		client := store.NewRedisClient(cfg.RedisAddr)
		defer client.Close()
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		opts = append(opts, attendance.WithPublisher(queue.NewRedisQueue(client, cfg.QueueKey)))
	case "memory":
		q := queue.NewInMemory(256)
		opts = append(opts, attendance.WithPublisher(q))
		auditLog, closer, err := audit.Open(cfg.AuditLogPath, os.Stdout)
		if err != nil {
			return err
		}
		defer closer.Close()
		g.Go(func() error {
			n, err := audit.Run(ctx, q, auditLog)
			log.Info().Int("messages", n).Msg("audit consumer stopped")
			return err
		})
	case "", "none":
	default:
		log.Warn().Str("queue", cfg.QueueBackend).Msg("unknown queue backend, activity feed disabled")
	}

	svc := attendance.NewService(st, opts...)
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := svc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return err
		}
	}

	limiter := httpmiddleware.NewClientLimiter(cfg.RateLimitPerMin)
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				limiter.Prune(10 * time.Minute)
			}
		}
	})

	router := rest.NewRouter(rest.Config{
		Tracker:      svc,
		Sessions:     auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL),
		AuthRequired: cfg.AuthRequired,
		Limiter:      limiter,
		Health:       health,
		Log:          log,
		Release:      cfg.Production(),
	})
	serve(ctx, g, log, "rest", &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	if cfg.LegacyHTTPPort != "" {
		legacy := form.NewHandler(svc, log.With().Str("component", "form").Logger())
		serve(ctx, g, log, "form", &http.Server{
			Addr:         ":" + cfg.LegacyHTTPPort,
			Handler:      legacy.Router(limiter.Handler),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		})
	}

	return g.Wait()
}

// serve runs srv until ctx ends, then shuts it down with a grace period.
func serve(ctx context.Context, g *errgroup.Group, log zerolog.Logger, name string, srv *http.Server) {
	g.Go(func() error {
		log.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Str("server", name).Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
}
