package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/queue"
)

func TestRunWritesOneLinePerMessage(t *testing.T) {
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, typ := range []string{queue.TypeStudentAdded, queue.TypeAttendanceMarked} {
		msg, err := queue.NewMessage(typ, map[string]string{"roll_number": "S1"})
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, msg))
	}

	var buf bytes.Buffer
	var written int
	done := make(chan struct{})
	go func() {
		defer close(done)
		written, _ = Run(ctx, q, zerolog.New(&syncWriter{buf: &buf}))
	}()

	require.Eventually(t, func() bool { return lineCount(&buf) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 2, written)

	sc := bufio.NewScanner(bytes.NewReader(snapshot(&buf)))
	require.True(t, sc.Scan())
	var line map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
	assert.Equal(t, queue.TypeStudentAdded, line["type"])
	assert.Equal(t, "activity", line["message"])
	assert.Equal(t, map[string]any{"roll_number": "S1"}, line["body"])
}

func TestOpenAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	log, closer, err := Open(path, nil)
	require.NoError(t, err)

	msg, err := queue.NewMessage(queue.TypeLogin, map[string]string{"id": "alice"})
	require.NoError(t, err)
	Write(log, msg)
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"session.login"`)
	assert.Contains(t, string(raw), `"stream":"audit"`)
}
