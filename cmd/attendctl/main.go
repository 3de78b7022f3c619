package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"studentattendance/internal/adapter/cli"
	"studentattendance/internal/attendance"
	"studentattendance/internal/config"
	"studentattendance/internal/logging"
	"studentattendance/internal/store"
)

func main() {
	cfg := config.Load()
	// Diagnostics go to stderr so command output stays parseable.
	log := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (attendance.Tracker, func() error, error) {
		st, err := store.Open(ctx, store.Options{
			Backend:     cfg.StoreBackend,
			DataDir:     cfg.DataDir,
			SQLitePath:  cfg.SQLitePath,
			DatabaseURL: cfg.DatabaseURL,
			RedisAddr:   cfg.RedisAddr,
			RedisPrefix: cfg.RedisPrefix,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		svc := attendance.NewService(st,
			attendance.WithMarkMode(attendance.ParseMarkMode(cfg.AttendanceMode)),
			attendance.WithLogger(log),
		)
		return svc, st.Close, nil
	}

	code := cli.Execute(ctx, open, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
