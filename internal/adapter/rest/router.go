// Package rest exposes the tracker as a versioned JSON API on gin.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"studentattendance/internal/adapter/wire"
	"studentattendance/internal/attendance"
	"studentattendance/internal/auth"
	"studentattendance/internal/httpmiddleware"
	"studentattendance/internal/logging"
)

// HealthCheck reports the reachability of one dependency.
type HealthCheck func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Tracker      attendance.Tracker
	Sessions     *auth.Issuer
	AuthRequired bool
	Limiter      *httpmiddleware.ClientLimiter
	Health       map[string]HealthCheck
	Log          zerolog.Logger
	Release      bool
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handler{tracker: cfg.Tracker, sessions: cfg.Sessions, log: cfg.Log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Gin(cfg.Log, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.GinMiddleware(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, wire.Envelope{
				Version: wire.Version, Status: wire.StatusError, Message: "rate limit exceeded",
			})
		}))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(cfg.Health))

	v1 := r.Group("/v1")
	v1.POST("/auth/signup", h.signup)
	v1.POST("/auth/login", h.login)

	records := v1.Group("")
	if cfg.AuthRequired {
		records.Use(auth.LecturerAuth(cfg.Sessions, func(c *gin.Context, message string) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, wire.Envelope{
				Version: wire.Version, Status: wire.StatusError, Outcome: attendance.OutcomeInvalidCredentials, Message: message,
			})
		}))
	}
	records.POST("/students", h.addStudent)
	records.GET("/students", h.listStudents)
	records.POST("/attendance", h.markAttendance)
	records.POST("/attendance/batch", h.markBatch)
	records.GET("/attendance", h.viewAttendance)
	records.GET("/attendance/all", h.listAttendance)

	return r
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			healthy := check(c.Request.Context()) == nil
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          24 * time.Hour,
	})
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
