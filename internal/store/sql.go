package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"studentattendance/internal/attendance"
)

// SQLStore persists the collections in Postgres or SQLite tables.
// Uniqueness is enforced by the tables with INSERT ... ON CONFLICT DO
// NOTHING; upserts are additionally serialised inside the process.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	upsert  sync.Mutex
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) insertIfAbsent(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) CreateCredential(ctx context.Context, c attendance.Credential) error {
	inserted, err := s.insertIfAbsent(ctx, `
		INSERT INTO credentials (id, password, role)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.Password, string(c.Role))
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if !inserted {
		return &attendance.DuplicateIDError{Kind: "credential", ID: c.ID}
	}
	return nil
}

func (s *SQLStore) FindCredential(ctx context.Context, id, password string) (*attendance.Credential, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, password, role FROM credentials WHERE id = ? AND password = ?
	`), id, password)
	var c attendance.Credential
	var role string
	if err := row.Scan(&c.ID, &c.Password, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Role = attendance.Role(role)
	return &c, nil
}

func (s *SQLStore) CreateStudent(ctx context.Context, st attendance.Student) error {
	var semester any
	if st.Semester != nil {
		semester = *st.Semester
	}
	inserted, err := s.insertIfAbsent(ctx, `
		INSERT INTO students (roll_number, name, department, semester)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (roll_number) DO NOTHING
	`, st.RollNumber, st.Name, st.Department, semester)
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	if !inserted {
		return &attendance.DuplicateIDError{Kind: "student", ID: st.RollNumber}
	}
	return nil
}

func (s *SQLStore) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT roll_number, name, department, semester FROM students ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []attendance.Student
	for rows.Next() {
		var st attendance.Student
		var semester sql.NullInt64
		if err := rows.Scan(&st.RollNumber, &st.Name, &st.Department, &semester); err != nil {
			return nil, err
		}
		if semester.Valid {
			v := int(semester.Int64)
			st.Semester = &v
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *SQLStore) AppendAttendance(ctx context.Context, r attendance.Record) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance (roll_number, attended_on, present) VALUES (?, ?, ?)
	`), r.RollNumber, r.Day(), r.Present)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// UpsertAttendance deletes the earlier marks for the day and inserts r in
// one transaction.
func (s *SQLStore) UpsertAttendance(ctx context.Context, r attendance.Record) error {
	s.upsert.Lock()
	defer s.upsert.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM attendance WHERE roll_number = ? AND attended_on = ?
	`), r.RollNumber, r.Day()); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance (roll_number, attended_on, present) VALUES (?, ?, ?)
	`), r.RollNumber, r.Day(), r.Present); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) AttendanceByDate(ctx context.Context, date time.Time) ([]attendance.Record, error) {
	return s.queryRecords(ctx, `
		SELECT roll_number, attended_on, present FROM attendance WHERE attended_on = ? ORDER BY seq
	`, date.Format(attendance.DateLayout))
}

func (s *SQLStore) ListAttendance(ctx context.Context) ([]attendance.Record, error) {
	return s.queryRecords(ctx, `SELECT roll_number, attended_on, present FROM attendance ORDER BY seq`)
}

func (s *SQLStore) queryRecords(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var r attendance.Record
		var day string
		if err := rows.Scan(&r.RollNumber, &day, &r.Present); err != nil {
			return nil, err
		}
		if r.Date, err = attendance.ParseDate(day); err != nil {
			return nil, fmt.Errorf("attendance date %q: %w", day, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }
