// Package audit turns activity messages into structured audit log lines.
package audit

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"studentattendance/internal/queue"
)

// Run consumes q until ctx ends, writing one line per message to out.
// It returns the number of messages written.
func Run(ctx context.Context, q queue.Queue, out zerolog.Logger) (int, error) {
	messages, err := q.Consume(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for msg := range messages {
		Write(out, msg)
		n++
	}
	return n, nil
}

// Write logs msg as an audit line.
func Write(out zerolog.Logger, msg queue.Message) {
	ev := out.Log().
		Str("id", msg.ID).
		Str("type", msg.Type).
		Time("at", msg.At)
	if len(msg.Body) > 0 {
		ev = ev.RawJSON("body", msg.Body)
	}
	ev.Msg("activity")
}

// Open returns a logger appending to path, or writing to fallback when path
// is empty. The returned closer releases the file.
func Open(path string, fallback io.Writer) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.New(fallback).With().Str("stream", "audit").Logger(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return zerolog.New(f).With().Str("stream", "audit").Logger(), f, nil
}
