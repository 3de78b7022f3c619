package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/attendance"
	"studentattendance/internal/store"
)

// fileOpener reopens the same data directory for every command, the way
// separate attendctl invocations would.
func fileOpener(t *testing.T) Opener {
	t.Helper()
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return func(context.Context) (attendance.Tracker, func() error, error) {
		st, err := store.OpenFile(dir, zerolog.Nop())
		if err != nil {
			return nil, nil, err
		}
		return attendance.NewService(st, attendance.WithClock(clock)), st.Close, nil
	}
}

func run(t *testing.T, open Opener, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), open, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSignupLoginFlow(t *testing.T) {
	open := fileOpener(t)

	code, out, _ := run(t, open, "signup", "alice", "pw1")
	require.Equal(t, 0, code)
	assert.Equal(t, "signup successful\n", out)

	code, _, errOut := run(t, open, "signup", "alice", "pw2")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `credential "alice" already exists`)

	code, out, _ = run(t, open, "login", "alice", "pw1")
	require.Equal(t, 0, code)
	assert.Equal(t, "login successful (LECTURER)\n", out)

	code, _, errOut = run(t, open, "login", "alice", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid credentials")
}

func TestReportAcrossInvocations(t *testing.T) {
	open := fileOpener(t)

	code, _, _ := run(t, open, "add-student", "S1", "Ann", "CS", "--semester", "2")
	require.Equal(t, 0, code)
	code, _, _ = run(t, open, "mark", "S1", "present")
	require.Equal(t, 0, code)
	code, _, _ = run(t, open, "mark", "S2", "absent", "--date", "2024-03-01")
	require.Equal(t, 0, code)

	code, out, _ := run(t, open, "report")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Attendance for 2024-03-01")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "Unknown")
	assert.Contains(t, out, "Total: 2  Present: 1  Absent: 1")

	code, out, _ = run(t, open, "report", "--date", "2024-03-01", "--json")
	require.Equal(t, 0, code)
	var env struct {
		Status string            `json:"status"`
		Data   attendance.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, 2, env.Data.TotalCount)
	assert.Equal(t, 1, env.Data.PresentCount)
}

func TestStudentsTable(t *testing.T) {
	open := fileOpener(t)
	_, _, _ = run(t, open, "add-student", "S1", "Ann", "CS")

	code, out, _ := run(t, open, "students")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ROLL")
	assert.Contains(t, out, "S1")
	assert.Contains(t, out, "-")
}

func TestJSONErrorEnvelope(t *testing.T) {
	open := fileOpener(t)
	code, out, _ := run(t, open, "mark", "S1", "late", "--json")
	assert.Equal(t, 1, code)

	var env struct {
		Status  string             `json:"status"`
		Outcome attendance.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, attendance.OutcomeValidation, env.Outcome)
}

func TestArgumentCount(t *testing.T) {
	code, _, errOut := run(t, fileOpener(t), "signup", "only-id")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "accepts 2 arg(s)")
}
