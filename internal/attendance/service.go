package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studentattendance/internal/queue"
)

// Tracker is the capability every front end drives. Errors are classified
// with OutcomeOf.
type Tracker interface {
	Signup(ctx context.Context, in SignupInput) error
	Login(ctx context.Context, id, password string) (Credential, error)
	AddStudent(ctx context.Context, in StudentInput) (Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	MarkAttendance(ctx context.Context, in MarkInput) (Record, error)
	MarkAttendanceBatch(ctx context.Context, date string, marks []MarkInput) ([]BatchResult, error)
	ViewAttendance(ctx context.Context, date string) (Report, error)
	ListAttendance(ctx context.Context) ([]Record, error)
}

// BatchResult is the outcome of one mark inside a batch.
type BatchResult struct {
	RollNumber string  `json:"roll_number"`
	Outcome    Outcome `json:"outcome"`
	Error      string  `json:"error,omitempty"`
}

// Publisher receives activity messages after successful operations.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service implements Tracker over a Store.
type Service struct {
	store  Store
	mode   MarkMode
	events Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMarkMode selects append or upsert for repeated daily marks.
func WithMarkMode(m MarkMode) Option { return func(s *Service) { s.mode = m } }

// WithPublisher sends activity messages to p.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the clock used for the default attendance date.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a service backed by a store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, mode: MarkAppend, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Tracker = (*Service)(nil)

// Signup registers a lecturer credential.
func (s *Service) Signup(ctx context.Context, in SignupInput) (err error) {
	defer observe("signup", time.Now(), &err)
	cred, err := ValidateSignup(in)
	if err != nil {
		return err
	}
	if err = s.store.CreateCredential(ctx, cred); err != nil {
		return s.fail("create credential", err)
	}
	s.log.Info().Str("id", cred.ID).Str("role", string(cred.Role)).Msg("credential created")
	s.publish(ctx, queue.TypeCredentialCreated, map[string]string{"id": cred.ID, "role": string(cred.Role)})
	return nil
}

// EnsureAdmin creates an ADMIN credential unless the id is already taken.
func (s *Service) EnsureAdmin(ctx context.Context, id, password string) error {
	cred, err := ValidateSignup(SignupInput{ID: id, Password: password})
	if err != nil {
		return err
	}
	cred.Role = RoleAdmin
	err = s.store.CreateCredential(ctx, cred)
	var dup *DuplicateIDError
	if errors.As(err, &dup) {
		return nil
	}
	if err != nil {
		return s.fail("create credential", err)
	}
	s.log.Info().Str("id", cred.ID).Msg("bootstrap admin created")
	return nil
}

// Login authenticates id and password. Unknown ids and wrong passwords
// both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, id, password string) (cred Credential, err error) {
	defer observe("login", time.Now(), &err)
	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return Credential{}, ErrInvalidCredentials
	}
	found, err := s.store.FindCredential(ctx, id, password)
	if err != nil {
		return Credential{}, s.fail("find credential", err)
	}
	if found == nil {
		s.publish(ctx, queue.TypeLoginRejected, map[string]string{"id": id})
		return Credential{}, ErrInvalidCredentials
	}
	s.publish(ctx, queue.TypeLogin, map[string]string{"id": found.ID})
	return *found, nil
}

// AddStudent registers a student.
func (s *Service) AddStudent(ctx context.Context, in StudentInput) (st Student, err error) {
	defer observe("add_student", time.Now(), &err)
	st, err = ValidateStudent(in)
	if err != nil {
		return Student{}, err
	}
	if err = s.store.CreateStudent(ctx, st); err != nil {
		return Student{}, s.fail("create student", err)
	}
	s.log.Info().Str("roll_number", st.RollNumber).Str("department", st.Department).Msg("student added")
	s.publish(ctx, queue.TypeStudentAdded, st)
	return st, nil
}

// ListStudents returns every student in insertion order.
func (s *Service) ListStudents(ctx context.Context) (out []Student, err error) {
	defer observe("list_students", time.Now(), &err)
	out, err = s.store.ListStudents(ctx)
	if err != nil {
		return nil, s.fail("list students", err)
	}
	return out, nil
}

// MarkAttendance records one mark according to the configured MarkMode.
func (s *Service) MarkAttendance(ctx context.Context, in MarkInput) (rec Record, err error) {
	defer observe("mark_attendance", time.Now(), &err)
	rec, err = ValidateMark(in, s.now())
	if err != nil {
		return Record{}, err
	}
	if s.mode == MarkUpsert {
		err = s.store.UpsertAttendance(ctx, rec)
	} else {
		err = s.store.AppendAttendance(ctx, rec)
	}
	if err != nil {
		return Record{}, s.fail("mark attendance", err)
	}
	s.log.Info().Str("roll_number", rec.RollNumber).Str("date", rec.Day()).Bool("present", rec.Present).Msg("attendance marked")
	s.publish(ctx, queue.TypeAttendanceMarked, map[string]any{
		"roll_number": rec.RollNumber,
		"date":        rec.Day(),
		"status":      rec.Status(),
	})
	return rec, nil
}

// MarkAttendanceBatch marks several students. date applies to every mark
// without its own date. Each mark is independent; nothing is rolled back.
func (s *Service) MarkAttendanceBatch(ctx context.Context, date string, marks []MarkInput) ([]BatchResult, error) {
	if len(marks) == 0 {
		return nil, ErrValidation("marks", "is required")
	}
	results := make([]BatchResult, 0, len(marks))
	for _, m := range marks {
		if strings.TrimSpace(m.Date) == "" {
			m.Date = date
		}
		_, err := s.MarkAttendance(ctx, m)
		res := BatchResult{RollNumber: strings.TrimSpace(m.RollNumber), Outcome: OutcomeOf(err)}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// ViewAttendance builds the report for date (YYYY-MM-DD, empty for today).
func (s *Service) ViewAttendance(ctx context.Context, date string) (rep Report, err error) {
	defer observe("view_attendance", time.Now(), &err)
	day := CivilDate(s.now())
	if strings.TrimSpace(date) != "" {
		day, err = ParseDate(date)
		if err != nil {
			return Report{}, ErrValidation("date", "must be YYYY-MM-DD")
		}
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return Report{}, s.fail("list students", err)
	}
	records, err := s.store.AttendanceByDate(ctx, day)
	if err != nil {
		return Report{}, s.fail("query attendance", err)
	}
	return BuildReport(day, students, records), nil
}

// ListAttendance returns every mark in insertion order.
func (s *Service) ListAttendance(ctx context.Context) (out []Record, err error) {
	defer observe("list_attendance", time.Now(), &err)
	out, err = s.store.ListAttendance(ctx)
	if err != nil {
		return nil, s.fail("list attendance", err)
	}
	return out, nil
}

// fail passes duplicates through and classifies everything else as a
// storage fault.
func (s *Service) fail(op string, err error) error {
	var dup *DuplicateIDError
	if errors.As(err, &dup) {
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("storage failure")
	return &IOError{Op: op, Err: err}
}

func (s *Service) publish(ctx context.Context, typ string, body any) {
	if s.events == nil {
		return
	}
	msg, err := queue.NewMessage(typ, body)
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("type", typ).Msg("activity publish failed")
	}
}
