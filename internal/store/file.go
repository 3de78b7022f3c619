package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"studentattendance/internal/attendance"
)

const (
	credentialsFile = "credentials.csv"
	studentsFile    = "students.csv"
	attendanceFile  = "attendance.csv"
)

// collection is one flat file plus a cache of its rows. Every operation
// holds mu and the file's lock, and reloads the rows when the file changed
// since it was last read, so several processes can share one data dir.
type collection[T any] struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	encode func(T) []string
	decode func([]string) (T, error)
	log    zerolog.Logger

	rows []T
	seen os.FileInfo
}

func newCollection[T any](path string, encode func(T) []string, decode func([]string) (T, error), log zerolog.Logger) (*collection[T], error) {
	c := &collection[T]{
		path:   path,
		lock:   flock.New(path + ".lock"),
		encode: encode,
		decode: decode,
		log:    log,
	}
	if err := c.read(func() error { return nil }); err != nil {
		return nil, err
	}
	return c, nil
}

// read runs fn under a shared lock with rows up to date.
func (c *collection[T]) read(fn func() error) error {
	return c.locked(c.lock.RLock, fn)
}

// write runs fn under an exclusive lock with rows up to date. fn must call
// written after it changes the file.
func (c *collection[T]) write(fn func() error) error {
	return c.locked(c.lock.Lock, fn)
}

func (c *collection[T]) locked(acquire func() error, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := acquire(); err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(c.path), err)
	}
	defer c.lock.Unlock()
	if err := c.refresh(); err != nil {
		return err
	}
	return fn()
}

func (c *collection[T]) snapshot() ([]T, error) {
	var out []T
	err := c.read(func() error {
		out = make([]T, len(c.rows))
		copy(out, c.rows)
		return nil
	})
	return out, err
}

// written records the file state after a write made by this collection.
func (c *collection[T]) written() {
	if info, err := os.Stat(c.path); err == nil {
		c.seen = info
	} else {
		c.seen = nil
	}
}

func unchanged(a, b os.FileInfo) bool {
	return a != nil && os.SameFile(a, b) && a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

// refresh reloads every row unless the file is the one last read.
func (c *collection[T]) refresh() error {
	f, err := os.OpenFile(c.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(c.path), err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(c.path), err)
	}
	if unchanged(c.seen, info) {
		return nil
	}

	var rows []T
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for line := 1; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			c.log.Warn().Err(err).Str("file", filepath.Base(c.path)).Msg("skipping malformed line")
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
		}
		row, err := c.decode(fields)
		if err != nil {
			c.log.Warn().Err(err).Str("file", filepath.Base(c.path)).Int("line", line).Msg("skipping malformed line")
			continue
		}
		rows = append(rows, row)
	}
	c.rows = rows
	c.seen = info
	return nil
}

func appendLine(path string, fields []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// rewrite replaces path atomically with lines.
func rewrite(path string, lines [][]string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(lines); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// CreateCredential appends c unless its id is taken.
func (s *FileStore) CreateCredential(_ context.Context, c attendance.Credential) error {
	col := s.credentials
	return col.write(func() error {
		for _, existing := range col.rows {
			if existing.ID == c.ID {
				return &attendance.DuplicateIDError{Kind: "credential", ID: c.ID}
			}
		}
		if err := appendLine(col.path, col.encode(c)); err != nil {
			return fmt.Errorf("append credential: %w", err)
		}
		col.rows = append(col.rows, c)
		col.written()
		return nil
	})
}

// FindCredential scans for a row matching both id and password.
func (s *FileStore) FindCredential(_ context.Context, id, password string) (*attendance.Credential, error) {
	col := s.credentials
	var found *attendance.Credential
	err := col.read(func() error {
		for _, c := range col.rows {
			if c.ID == id && c.Password == password {
				match := c
				found = &match
				return nil
			}
		}
		return nil
	})
	return found, err
}

// CreateStudent appends st unless its roll number is taken.
func (s *FileStore) CreateStudent(_ context.Context, st attendance.Student) error {
	col := s.students
	return col.write(func() error {
		for _, existing := range col.rows {
			if existing.RollNumber == st.RollNumber {
				return &attendance.DuplicateIDError{Kind: "student", ID: st.RollNumber}
			}
		}
		if err := appendLine(col.path, col.encode(st)); err != nil {
			return fmt.Errorf("append student: %w", err)
		}
		col.rows = append(col.rows, st)
		col.written()
		return nil
	})
}

func (s *FileStore) ListStudents(context.Context) ([]attendance.Student, error) {
	return s.students.snapshot()
}

func (s *FileStore) AppendAttendance(_ context.Context, r attendance.Record) error {
	col := s.records
	return col.write(func() error {
		if err := appendLine(col.path, col.encode(r)); err != nil {
			return fmt.Errorf("append attendance: %w", err)
		}
		col.rows = append(col.rows, r)
		col.written()
		return nil
	})
}

// UpsertAttendance drops earlier marks for the same roll number and day,
// appends r and rewrites the file.
func (s *FileStore) UpsertAttendance(_ context.Context, r attendance.Record) error {
	col := s.records
	return col.write(func() error {
		kept := make([]attendance.Record, 0, len(col.rows)+1)
		for _, existing := range col.rows {
			if existing.RollNumber == r.RollNumber && existing.Date.Equal(r.Date) {
				continue
			}
			kept = append(kept, existing)
		}
		kept = append(kept, r)
		lines := make([][]string, len(kept))
		for i, rec := range kept {
			lines[i] = col.encode(rec)
		}
		if err := rewrite(col.path, lines); err != nil {
			col.seen = nil
			return fmt.Errorf("rewrite attendance: %w", err)
		}
		col.rows = kept
		col.written()
		return nil
	})
}

func (s *FileStore) AttendanceByDate(_ context.Context, date time.Time) ([]attendance.Record, error) {
	col := s.records
	var out []attendance.Record
	err := col.read(func() error {
		for _, r := range col.rows {
			if r.Date.Equal(date) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) ListAttendance(context.Context) ([]attendance.Record, error) {
	return s.records.snapshot()
}

// Ping checks that the data directory is still reachable.
func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) Close() error { return nil }

func encodeCredential(c attendance.Credential) []string {
	return []string{c.ID, c.Password, string(c.Role)}
}

func decodeCredential(f []string) (attendance.Credential, error) {
	if len(f) < 2 || strings.TrimSpace(f[0]) == "" {
		return attendance.Credential{}, errors.New("credential needs id and password")
	}
	c := attendance.Credential{ID: strings.TrimSpace(f[0]), Password: f[1]}
	if len(f) >= 3 {
		c.Role = attendance.Role(strings.TrimSpace(f[2]))
	}
	return c, nil
}

func encodeStudent(st attendance.Student) []string {
	sem := ""
	if st.Semester != nil {
		sem = strconv.Itoa(*st.Semester)
	}
	return []string{st.RollNumber, st.Name, st.Department, sem}
}

func decodeStudent(f []string) (attendance.Student, error) {
	trimAll(f)
	if len(f) < 3 || f[0] == "" {
		return attendance.Student{}, errors.New("student needs roll number, name and department")
	}
	st := attendance.Student{RollNumber: f[0], Name: f[1], Department: f[2]}
	if len(f) >= 4 && f[3] != "" {
		sem, err := strconv.Atoi(f[3])
		if err != nil {
			return attendance.Student{}, fmt.Errorf("semester %q: %w", f[3], err)
		}
		st.Semester = &sem
	}
	return st, nil
}

func encodeRecord(r attendance.Record) []string {
	return []string{r.RollNumber, r.Day(), r.Status()}
}

func decodeRecord(f []string) (attendance.Record, error) {
	trimAll(f)
	if len(f) < 3 || f[0] == "" {
		return attendance.Record{}, errors.New("attendance needs roll number, date and status")
	}
	day, err := attendance.ParseDate(f[1])
	if err != nil {
		return attendance.Record{}, err
	}
	present, ok := attendance.ParseStatus(f[2])
	if !ok {
		return attendance.Record{}, fmt.Errorf("unknown status %q", f[2])
	}
	return attendance.Record{RollNumber: f[0], Date: day, Present: present}, nil
}

func trimAll(fields []string) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
}
