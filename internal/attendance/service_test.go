package attendance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/attendance"
	"studentattendance/internal/queue"
	"studentattendance/internal/store"
)

var fixedNow = time.Date(2024, 1, 10, 9, 15, 0, 0, time.UTC)

func newService(t *testing.T, opts ...attendance.Option) (*attendance.Service, *store.FileStore) {
	t.Helper()
	st, err := store.OpenFile(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	opts = append([]attendance.Option{attendance.WithClock(func() time.Time { return fixedNow })}, opts...)
	return attendance.NewService(st, opts...), st
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

func TestSignupThenLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, attendance.SignupInput{ID: "alice", Password: "pw1"}))
	cred, err := svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.ID)
	assert.Equal(t, attendance.RoleLecturer, cred.Role)

	err = svc.Signup(ctx, attendance.SignupInput{ID: "alice", Password: "different"})
	var dup *attendance.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, attendance.OutcomeDuplicate, attendance.OutcomeOf(err))

	// The original password still works; the duplicate changed nothing.
	_, err = svc.Login(ctx, "alice", "pw1")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "different")
	assert.ErrorIs(t, err, attendance.ErrInvalidCredentials)
}

func TestLoginDoesNotLeakWhichFieldFailed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Signup(ctx, attendance.SignupInput{ID: "alice", Password: "pw1"}))

	_, unknownID := svc.Login(ctx, "bob", "pw1")
	_, wrongPassword := svc.Login(ctx, "alice", "nope")
	_, blank := svc.Login(ctx, "", "")

	for _, err := range []error{unknownID, wrongPassword, blank} {
		assert.ErrorIs(t, err, attendance.ErrInvalidCredentials)
		assert.Equal(t, attendance.OutcomeInvalidCredentials, attendance.OutcomeOf(err))
	}
	assert.Equal(t, unknownID.Error(), wrongPassword.Error())
}

func TestAddStudentDuplicateRegardlessOfPayload(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddStudent(ctx, attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, attendance.StudentInput{RollNumber: "S1", Name: "Bob", Department: "EE"})
	var dup *attendance.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "S1", dup.ID)

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ana", students[0].Name)
	assert.Equal(t, "CS", students[0].Department)
}

func TestConcurrentAddStudentHasOneWinner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddStudent(ctx, attendance.StudentInput{
				RollNumber: "S1",
				Name:       fmt.Sprintf("name-%d", i),
				Department: fmt.Sprintf("dept-%d", i),
			})
		}(i)
	}
	wg.Wait()

	winner := -1
	duplicates := 0
	for i, err := range errs {
		switch attendance.OutcomeOf(err) {
		case attendance.OutcomeSuccess:
			require.Equal(t, -1, winner, "more than one success")
			winner = i
		case attendance.OutcomeDuplicate:
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.NotEqual(t, -1, winner)
	assert.Equal(t, n-1, duplicates)

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, fmt.Sprintf("name-%d", winner), students[0].Name)
	assert.Equal(t, fmt.Sprintf("dept-%d", winner), students[0].Department)
}

func TestWorkedExampleReport(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Date: "2024-01-10", Status: "true"})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S2", Date: "2024-01-10", Status: "false"})
	require.NoError(t, err)

	rep, err := svc.ViewAttendance(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalCount)
	assert.Equal(t, 1, rep.PresentCount)
	assert.Equal(t, 1, rep.AbsentCount)
}

func TestMarkThenViewIncludesRow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddStudent(ctx, attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	require.NoError(t, err)

	rec, err := svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Status: "Absent"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", rec.Day(), "missing date defaults to today")

	rep, err := svc.ViewAttendance(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []attendance.ReportRow{{RollNumber: "S1", StudentName: "Ana", Status: "Absent"}}, rep.Rows)
}

func TestRepeatedMarkAppendMode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, status := range []string{"present", "present"} {
		_, err := svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Date: "2024-01-10", Status: status})
		require.NoError(t, err)
	}
	rep, err := svc.ViewAttendance(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Len(t, rep.Rows, 2)
	assert.Equal(t, 2, rep.PresentCount, "append mode double-counts repeated marks")
}

func TestRepeatedMarkUpsertMode(t *testing.T) {
	svc, st := newService(t, attendance.WithMarkMode(attendance.MarkUpsert))
	ctx := context.Background()

	_, err := svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Date: "2024-01-10", Status: "present"})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S2", Date: "2024-01-10", Status: "present"})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Date: "2024-01-11", Status: "present"})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Date: "2024-01-10", Status: "absent"})
	require.NoError(t, err)

	rep, err := svc.ViewAttendance(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, []attendance.ReportRow{
		{RollNumber: "S2", StudentName: attendance.UnknownStudent, Status: "Present"},
		{RollNumber: "S1", StudentName: attendance.UnknownStudent, Status: "Absent"},
	}, rep.Rows)
	assert.Equal(t, 1, rep.AbsentCount)

	all, err := st.ListAttendance(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "other days are untouched")
}

func TestViewAttendanceEmptyAndInvalid(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rep, err := svc.ViewAttendance(ctx, "1999-12-31")
	require.NoError(t, err)
	assert.Zero(t, rep.TotalCount)
	assert.Zero(t, rep.PresentCount)
	assert.Zero(t, rep.AbsentCount)
	assert.Empty(t, rep.Rows)

	_, err = svc.ViewAttendance(ctx, "31-12-1999")
	assert.Equal(t, attendance.OutcomeValidation, attendance.OutcomeOf(err))
}

func TestMarkAttendanceBatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	results, err := svc.MarkAttendanceBatch(ctx, "2024-01-12", []attendance.MarkInput{
		{RollNumber: "S1", Status: "present"},
		{RollNumber: "S2", Status: "sick"},
		{RollNumber: "S3", Status: "absent"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, attendance.OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, attendance.OutcomeValidation, results[1].Outcome)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, attendance.OutcomeSuccess, results[2].Outcome)

	rep, err := svc.ViewAttendance(ctx, "2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalCount)

	_, err = svc.MarkAttendanceBatch(ctx, "2024-01-12", nil)
	assert.Equal(t, attendance.OutcomeValidation, attendance.OutcomeOf(err))
}

func TestActivityMessages(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, attendance.WithPublisher(pub))
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, attendance.SignupInput{ID: "alice", Password: "pw1"}))
	_, _ = svc.Login(ctx, "alice", "pw1")
	_, _ = svc.Login(ctx, "alice", "bad")
	_, err := svc.AddStudent(ctx, attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, attendance.MarkInput{RollNumber: "S1", Status: "present"})
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	require.Error(t, err)

	assert.Equal(t, []string{
		queue.TypeCredentialCreated,
		queue.TypeLogin,
		queue.TypeLoginRejected,
		queue.TypeStudentAdded,
		queue.TypeAttendanceMarked,
	}, pub.types())
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("queue down")}
	svc, _ := newService(t, attendance.WithPublisher(pub))

	_, err := svc.AddStudent(context.Background(), attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	assert.NoError(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin123"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin123"), "second call is a no-op")

	cred, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, attendance.RoleAdmin, cred.Role)
}

func TestStorageFaultIsIOFailure(t *testing.T) {
	st, err := store.OpenFile(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	svc := attendance.NewService(faultyStore{Store: st})

	_, err = svc.AddStudent(context.Background(), attendance.StudentInput{RollNumber: "S1", Name: "Ana", Department: "CS"})
	var ioErr *attendance.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, attendance.OutcomeIOFailure, attendance.OutcomeOf(err))
}

var errDisk = errors.New("disk full")

type faultyStore struct{ attendance.Store }

func (faultyStore) CreateStudent(context.Context, attendance.Student) error { return errDisk }
