package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/attendance"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := attendance.ParseDate(s)
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }

// runConformance exercises the attendance.Store contract against a fresh
// store from open for every subtest.
func runConformance(t *testing.T, open func(t *testing.T) attendance.Store) {
	ctx := context.Background()

	t.Run("credentials", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateCredential(ctx, attendance.Credential{ID: "alice", Password: "pw1", Role: attendance.RoleLecturer}))

		err := s.CreateCredential(ctx, attendance.Credential{ID: "alice", Password: "other"})
		var dup *attendance.DuplicateIDError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "credential", dup.Kind)

		found, err := s.FindCredential(ctx, "alice", "pw1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, attendance.RoleLecturer, found.Role)

		found, err = s.FindCredential(ctx, "alice", "other")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = s.FindCredential(ctx, "nobody", "pw1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("students keep insertion order", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateStudent(ctx, attendance.Student{RollNumber: "S2", Name: "Bob", Department: "EE"}))
		require.NoError(t, s.CreateStudent(ctx, attendance.Student{RollNumber: "S1", Name: "Ana", Department: "CS", Semester: intPtr(3)}))

		err := s.CreateStudent(ctx, attendance.Student{RollNumber: "S1", Name: "Other", Department: "ME"})
		var dup *attendance.DuplicateIDError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "student", dup.Kind)

		students, err := s.ListStudents(ctx)
		require.NoError(t, err)
		assert.Equal(t, []attendance.Student{
			{RollNumber: "S2", Name: "Bob", Department: "EE"},
			{RollNumber: "S1", Name: "Ana", Department: "CS", Semester: intPtr(3)},
		}, students)
	})

	t.Run("attendance append and query", func(t *testing.T) {
		s := open(t)
		marks := []attendance.Record{
			{RollNumber: "S1", Date: date(t, "2024-01-10"), Present: true},
			{RollNumber: "S2", Date: date(t, "2024-01-11"), Present: false},
			{RollNumber: "S2", Date: date(t, "2024-01-10"), Present: false},
			{RollNumber: "S1", Date: date(t, "2024-01-10"), Present: true},
		}
		for _, r := range marks {
			require.NoError(t, s.AppendAttendance(ctx, r))
		}

		day, err := s.AttendanceByDate(ctx, date(t, "2024-01-10"))
		require.NoError(t, err)
		assert.Equal(t, []attendance.Record{marks[0], marks[2], marks[3]}, day)

		none, err := s.AttendanceByDate(ctx, date(t, "2023-01-01"))
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := s.ListAttendance(ctx)
		require.NoError(t, err)
		assert.Equal(t, marks, all)
	})

	t.Run("attendance upsert replaces and moves to end", func(t *testing.T) {
		s := open(t)
		d := date(t, "2024-01-10")
		require.NoError(t, s.AppendAttendance(ctx, attendance.Record{RollNumber: "S1", Date: d, Present: true}))
		require.NoError(t, s.AppendAttendance(ctx, attendance.Record{RollNumber: "S1", Date: d, Present: true}))
		require.NoError(t, s.AppendAttendance(ctx, attendance.Record{RollNumber: "S2", Date: d, Present: true}))
		require.NoError(t, s.UpsertAttendance(ctx, attendance.Record{RollNumber: "S1", Date: d, Present: false}))

		day, err := s.AttendanceByDate(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, []attendance.Record{
			{RollNumber: "S2", Date: d, Present: true},
			{RollNumber: "S1", Date: d, Present: false},
		}, day)
	})

	t.Run("concurrent create student has one winner", func(t *testing.T) {
		s := open(t)
		const n = 16
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.CreateStudent(ctx, attendance.Student{RollNumber: "S1", Name: fmt.Sprintf("n%d", i), Department: "CS"})
			}(i)
		}
		wg.Wait()

		wins := 0
		winner := ""
		for i, err := range errs {
			if err == nil {
				wins++
				winner = fmt.Sprintf("n%d", i)
				continue
			}
			var dup *attendance.DuplicateIDError
			require.ErrorAs(t, err, &dup)
		}
		require.Equal(t, 1, wins)

		students, err := s.ListStudents(ctx)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, winner, students[0].Name)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(ctx))
	})
}
