package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"studentattendance/internal/adapter/wire"
	"studentattendance/internal/attendance"
	"studentattendance/internal/auth"
)

type handler struct {
	tracker  attendance.Tracker
	sessions *auth.Issuer
	log      zerolog.Logger
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID        string          `json:"id"`
	Role      attendance.Role `json:"role"`
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
}

type batchRequest struct {
	Date  string                 `json:"date"`
	Marks []attendance.MarkInput `json:"marks"`
}

func (h *handler) fail(c *gin.Context, err error) {
	env := wire.Fail(err)
	c.JSON(wire.HTTPStatus(env.Outcome), env)
}

// bind decodes the JSON body; a malformed body is a validation error.
func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, attendance.ErrValidation("body", "must be a JSON object"))
		return false
	}
	return true
}

func (h *handler) signup(c *gin.Context) {
	var in attendance.SignupInput
	if !h.bind(c, &in) {
		return
	}
	if err := h.tracker.Signup(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.OK("signup successful", nil))
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	cred, err := h.tracker.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	sess, err := h.sessions.Issue(cred.ID, string(cred.Role))
	if err != nil {
		h.log.Error().Err(err).Msg("session issue failed")
		c.JSON(http.StatusInternalServerError, wire.Envelope{Version: wire.Version, Status: wire.StatusError, Message: "session issue failed"})
		return
	}
	c.JSON(http.StatusOK, wire.OK("login successful", loginResponse{
		ID:        cred.ID,
		Role:      cred.Role,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Unix(),
	}))
}

func (h *handler) addStudent(c *gin.Context) {
	var in attendance.StudentInput
	if !h.bind(c, &in) {
		return
	}
	st, err := h.tracker.AddStudent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.OK("student added", st))
}

func (h *handler) listStudents(c *gin.Context) {
	students, err := h.tracker.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if students == nil {
		students = []attendance.Student{}
	}
	c.JSON(http.StatusOK, wire.OK("", students))
}

func (h *handler) markAttendance(c *gin.Context) {
	var in attendance.MarkInput
	if !h.bind(c, &in) {
		return
	}
	rec, err := h.tracker.MarkAttendance(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.OK("attendance marked", rec))
}

func (h *handler) markBatch(c *gin.Context) {
	var req batchRequest
	if !h.bind(c, &req) {
		return
	}
	results, err := h.tracker.MarkAttendanceBatch(c.Request.Context(), req.Date, req.Marks)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.OK("batch processed", results))
}

func (h *handler) viewAttendance(c *gin.Context) {
	rep, err := h.tracker.ViewAttendance(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.OK("", rep))
}

func (h *handler) listAttendance(c *gin.Context) {
	records, err := h.tracker.ListAttendance(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, wire.OK("", records))
}
