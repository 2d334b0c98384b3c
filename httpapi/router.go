// Package httpapi is the thin HTTP surface over the booking core: route
// wiring, token middleware and JSON mapping. Business rules live in the auth
// and appointment packages.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"careslot/appointment"
	"careslot/auth"
	"careslot/metrics"
)

// Server bundles the services behind the HTTP routes.
type Server struct {
	auth   *auth.Service
	appts  *appointment.Service
	logger *slog.Logger
}

func NewServer(authSvc *auth.Service, apptSvc *appointment.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{auth: authSvc, appts: apptSvc, logger: logger}
}

// Router assembles the route tree. Register and login sit behind the rate
// limiter; everything else sits behind token authentication.
func (s *Server) Router(rl *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(rl.Middleware)
		r.Post("/auth/register/client", s.handleRegisterClient)
		r.Post("/auth/register/provider", s.handleRegisterProvider)
		r.Post("/auth/register/admin", s.handleRegisterAdmin)
		r.Post("/auth/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(s.auth, s.logger))

		r.Get("/auth/me", s.handleMe)
		r.Put("/auth/password", s.handleChangePassword)

		r.Put("/providers/availability", s.handleUpdateAvailability)
		r.Put("/admin/providers/{id}/verify", s.handleVerifyProvider)
		r.Put("/admin/accounts/{id}/active", s.handleSetAccountActive)

		r.Post("/appointments", s.handleBook)
		r.Get("/appointments/{id}", s.handleGetAppointment)
		r.Put("/appointments/{id}/status", s.handleSetStatus)
		r.Put("/appointments/{id}/cancel", s.handleCancel)
		r.Post("/appointments/{id}/review", s.handleAttachReview)
		r.Get("/providers/{providerId}/available-slots", s.handleAvailableSlots)
	})

	return r
}
