package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type handlers struct {
	svc BookingService
	log *slog.Logger
}

// NewRouter wires the booking API. All appointment routes require a resolved
// company identity; /health does not.
func NewRouter(svc BookingService, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{svc: svc, log: log.With(slog.String("component", "http"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(companyContext)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.createAppointment)
			r.Get("/", h.listAppointments)
			r.Get("/{appointmentID}", h.getAppointment)
			r.Patch("/{appointmentID}", h.updateAppointment)
			r.Post("/{appointmentID}/cancel", h.cancelAppointment)
			r.Delete("/{appointmentID}", h.deleteAppointment)
		})

		r.Get("/availability", h.availability)
	})

	return r
}
