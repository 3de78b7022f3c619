package httpmiddleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per client key.
type ClientLimiter struct {
	limit rate.Limit
	burst int
	mu    sync.Mutex
	state map[string]*clientLimiter
	now   func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter allows perMinute requests per client with a burst of
// the same size. perMinute <= 0 disables limiting.
func NewClientLimiter(perMinute int) *ClientLimiter {
	l := &ClientLimiter{
		limit: rate.Inf,
		burst: 1,
		state: make(map[string]*clientLimiter),
		now:   time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Limit(float64(perMinute) / 60)
		l.burst = perMinute
	}
	return l
}

// Allow reports whether key may proceed now. On refusal it returns how
// long to wait.
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	cl, ok := l.state[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.state[key] = cl
	}
	cl.lastSeen = now
	l.mu.Unlock()

	res := cl.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Prune forgets clients idle for longer than idle.
func (l *ClientLimiter) Prune(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, cl := range l.state {
		if cl.lastSeen.Before(cutoff) {
			delete(l.state, key)
		}
	}
}

// GinMiddleware returns gin handler enforcing per-IP limits. reject
// renders the refusal; nil writes a plain JSON error.
func (l *ClientLimiter) GinMiddleware(reject func(c *gin.Context)) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		}
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if ok, wait := l.Allow(ip); !ok {
			setRetryAfter(c.Writer.Header(), wait)
			reject(c)
			return
		}
		c.Next()
	}
}

// Handler is the net/http variant of GinMiddleware. It keys on
// RemoteAddr only.
func (l *ClientLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := l.Allow(remoteIP(r)); !ok {
			setRetryAfter(w.Header(), wait)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setRetryAfter(h http.Header, wait time.Duration) {
	if wait > 0 {
		h.Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
