package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"careslot/auth"
)

// Authenticate verifies the bearer token and attaches the resolved principal
// to the request context. Verification re-reads the principal store on every
// request; there is no caching window after deactivation.
func Authenticate(svc *auth.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				writeError(w, logger, auth.ErrUnauthenticated)
				return
			}

			principal, err := svc.Verify(r.Context(), token)
			if err != nil {
				writeError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter applies a per-client-IP token bucket, used on the
// register/login routes.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	r       rate.Limit
	burst   int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*limiterEntry),
		r:       rate.Limit(rps),
		burst:   burst,
	}
	// drop stale entries every minute
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.mu.Lock()
			for ip, e := range rl.clients {
				if time.Since(e.seen) > 3*time.Minute {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}()
	return rl
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if e, ok := rl.clients[ip]; ok {
		e.seen = time.Now()
		return e.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[ip] = &limiterEntry{lim: l, seen: time.Now()}
	return l
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.get(ip).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
