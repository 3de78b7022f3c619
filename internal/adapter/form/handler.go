// Package form serves the legacy form-encoded endpoints that answer with
// plain-text status tokens.
package form

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"studentattendance/internal/attendance"
	"studentattendance/internal/logging"
)

// Status tokens written as the whole response body.
const (
	SignupSuccess      = "SIGNUP_SUCCESS"
	SignupDuplicate    = "SIGNUP_DUPLICATE"
	LoginSuccess       = "LOGIN_SUCCESS"
	InvalidCredentials = "INVALID_CREDENTIALS"
	StudentAdded       = "STUDENT_ADDED"
	StudentDuplicate   = "STUDENT_DUPLICATE"
	AttendanceMarked   = "ATTENDANCE_MARKED"
	InvalidInput       = "INVALID_INPUT"
	Error              = "ERROR"
)

// Handler maps form posts onto a Tracker.
type Handler struct {
	tracker attendance.Tracker
	log     zerolog.Logger
}

// NewHandler creates the legacy form handler.
func NewHandler(tracker attendance.Tracker, log zerolog.Logger) *Handler {
	return &Handler{tracker: tracker, log: log}
}

// Router builds a chi router with the legacy routes. limit may be nil.
func (h *Handler) Router(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.HTTP(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	if limit != nil {
		r.Use(limit)
	}

	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/addStudent", h.AddStudent)
	r.Post("/markAttendance", h.MarkAttendance)
	r.Get("/attendance", h.Attendance)
	return r
}

// token picks the reply for err given the per-outcome tokens of a route.
func token(err error, success, duplicate, invalid string) string {
	switch attendance.OutcomeOf(err) {
	case attendance.OutcomeSuccess:
		return success
	case attendance.OutcomeDuplicate:
		return duplicate
	case attendance.OutcomeValidation:
		return invalid
	case attendance.OutcomeInvalidCredentials:
		return InvalidCredentials
	default:
		return Error
	}
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		reply(w, InvalidInput)
		return false
	}
	return true
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	err := h.tracker.Signup(r.Context(), attendance.SignupInput{
		ID:       r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	reply(w, token(err, SignupSuccess, SignupDuplicate, InvalidInput))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	_, err := h.tracker.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	reply(w, token(err, LoginSuccess, Error, InvalidCredentials))
}

func (h *Handler) AddStudent(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	_, err := h.tracker.AddStudent(r.Context(), attendance.StudentInput{
		RollNumber: r.PostFormValue("roll"),
		Name:       r.PostFormValue("name"),
		Department: r.PostFormValue("department"),
		Semester:   r.PostFormValue("semester"),
	})
	reply(w, token(err, StudentAdded, StudentDuplicate, InvalidInput))
}

// MarkAttendance accepts the status as "status" or as the older boolean
// "present" field.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	status := r.PostFormValue("status")
	if status == "" {
		status = r.PostFormValue("present")
	}
	_, err := h.tracker.MarkAttendance(r.Context(), attendance.MarkInput{
		RollNumber: r.PostFormValue("roll"),
		Date:       r.PostFormValue("date"),
		Status:     status,
	})
	reply(w, token(err, AttendanceMarked, Error, InvalidInput))
}

// Attendance writes one "roll,name,status" line per mark followed by the
// tallies.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tracker.ViewAttendance(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		reply(w, token(err, "", Error, InvalidInput))
		return
	}
	var b strings.Builder
	for _, row := range rep.Rows {
		fmt.Fprintf(&b, "%s,%s,%s\n", row.RollNumber, row.StudentName, row.Status)
	}
	fmt.Fprintf(&b, "TOTAL=%d PRESENT=%d ABSENT=%d", rep.TotalCount, rep.PresentCount, rep.AbsentCount)
	reply(w, b.String())
}
