package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studentattendance/internal/attendance"
)

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// Healthy verifies redis connectivity.
func Healthy(ctx context.Context, client *redis.Client) bool {
	if client == nil {
		return false
	}
	return client.Ping(ctx).Err() == nil
}

// createStudentScript stores a student and records its position only when
// the roll number is new.
var createStudentScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

// upsertAttendanceScript drops every mark for (roll, date) and appends the
// new one.
var upsertAttendanceScript = redis.NewScript(`
local rows = redis.call('LRANGE', KEYS[1], 0, -1)
for _, raw in ipairs(rows) do
  local rec = cjson.decode(raw)
  if rec.roll_number == ARGV[1] and rec.date == ARGV[2] then
    redis.call('LREM', KEYS[1], 0, raw)
  end
end
redis.call('RPUSH', KEYS[1], ARGV[3])
return 1
`)

// RedisStore keeps credentials and students in hashes and the attendance
// log in a list, all under one key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore uses prefix for every key, "attendance" when empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "attendance"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string { return s.prefix + ":" + name }

type redisCredential struct {
	Password string `json:"password"`
	Role     string `json:"role"`
}

type redisRecord struct {
	RollNumber string `json:"roll_number"`
	Date       string `json:"date"`
	Present    bool   `json:"present"`
}

func (s *RedisStore) CreateCredential(ctx context.Context, c attendance.Credential) error {
	raw, err := json.Marshal(redisCredential{Password: c.Password, Role: string(c.Role)})
	if err != nil {
		return err
	}
	ok, err := s.client.HSetNX(ctx, s.key("credentials"), c.ID, raw).Result()
	if err != nil {
		return fmt.Errorf("hsetnx credential: %w", err)
	}
	if !ok {
		return &attendance.DuplicateIDError{Kind: "credential", ID: c.ID}
	}
	return nil
}

func (s *RedisStore) FindCredential(ctx context.Context, id, password string) (*attendance.Credential, error) {
	raw, err := s.client.HGet(ctx, s.key("credentials"), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored redisCredential
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode credential %q: %w", id, err)
	}
	if stored.Password != password {
		return nil, nil
	}
	return &attendance.Credential{ID: id, Password: stored.Password, Role: attendance.Role(stored.Role)}, nil
}

func (s *RedisStore) CreateStudent(ctx context.Context, st attendance.Student) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	created, err := createStudentScript.Run(ctx, s.client,
		[]string{s.key("students"), s.key("students:order")},
		st.RollNumber, raw).Int()
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if created == 0 {
		return &attendance.DuplicateIDError{Kind: "student", ID: st.RollNumber}
	}
	return nil
}

func (s *RedisStore) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	order, err := s.client.LRange(ctx, s.key("students:order"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.key("students"), order...).Result()
	if err != nil {
		return nil, err
	}
	students := make([]attendance.Student, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var st attendance.Student
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("decode student %q: %w", order[i], err)
		}
		students = append(students, st)
	}
	return students, nil
}

func encodeRedisRecord(r attendance.Record) (string, error) {
	raw, err := json.Marshal(redisRecord{RollNumber: r.RollNumber, Date: r.Day(), Present: r.Present})
	return string(raw), err
}

func (s *RedisStore) AppendAttendance(ctx context.Context, r attendance.Record) error {
	raw, err := encodeRedisRecord(r)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, s.key("attendance"), raw).Err(); err != nil {
		return fmt.Errorf("rpush attendance: %w", err)
	}
	return nil
}

func (s *RedisStore) UpsertAttendance(ctx context.Context, r attendance.Record) error {
	raw, err := encodeRedisRecord(r)
	if err != nil {
		return err
	}
	err = upsertAttendanceScript.Run(ctx, s.client, []string{s.key("attendance")}, r.RollNumber, r.Day(), raw).Err()
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

func (s *RedisStore) AttendanceByDate(ctx context.Context, date time.Time) ([]attendance.Record, error) {
	all, err := s.ListAttendance(ctx)
	if err != nil {
		return nil, err
	}
	var out []attendance.Record
	for _, r := range all {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RedisStore) ListAttendance(ctx context.Context) ([]attendance.Record, error) {
	rows, err := s.client.LRange(ctx, s.key("attendance"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, raw := range rows {
		var rr redisRecord
		if err := json.Unmarshal([]byte(raw), &rr); err != nil {
			return nil, fmt.Errorf("decode attendance: %w", err)
		}
		day, err := attendance.ParseDate(rr.Date)
		if err != nil {
			return nil, fmt.Errorf("attendance date %q: %w", rr.Date, err)
		}
		records = append(records, attendance.Record{RollNumber: rr.RollNumber, Date: day, Present: rr.Present})
	}
	return records, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.client.Close() }
