package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"studentattendance/internal/audit"
	"studentattendance/internal/config"
	"studentattendance/internal/logging"
	"studentattendance/internal/queue"
	"studentattendance/internal/store"
)

// Worker drains the redis activity queue into the audit log.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatal().Str("queue", cfg.QueueBackend).Msg("worker needs QUEUE_BACKEND=redis")
	}

	client := store.NewRedisClient(cfg.RedisAddr)
	defer client.Close()
	if !store.Healthy(ctx, client) {
		log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet, consumer will retry")
	}

	auditLog, closer, err := audit.Open(cfg.AuditLogPath, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditLogPath).Msg("open audit log")
	}
	defer closer.Close()

	log.Info().Str("queue", cfg.QueueKey).Msg("worker started, waiting for messages")
	n, err := audit.Run(ctx, queue.NewRedisQueue(client, cfg.QueueKey), auditLog)
	if err != nil {
		log.Error().Err(err).Msg("consume failed")
		return
	}
	log.Info().Int("messages", n).Msg("worker stopped")
}
