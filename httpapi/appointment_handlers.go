package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"careslot/appointment"
	"careslot/auth"
	"careslot/metrics"
)

type apptResponse struct {
	ID                 string  `json:"id"`
	ClientID           string  `json:"client_id"`
	ProviderID         string  `json:"provider_id"`
	Date               string  `json:"date"`
	StartTime          string  `json:"start_time"`
	EndTime            string  `json:"end_time"`
	Duration           int     `json:"duration"`
	SessionType        string  `json:"session_type"`
	SessionMode        string  `json:"session_mode"`
	Status             string  `json:"status"`
	Notes              *string `json:"notes,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	Rating             *int    `json:"rating,omitempty"`
	Review             *string `json:"review,omitempty"`
	Amount             float64 `json:"amount"`
}

func renderAppt(a appointment.Appointment) apptResponse {
	return apptResponse{
		ID:                 a.ID,
		ClientID:           a.ClientID,
		ProviderID:         a.ProviderID,
		Date:               a.Date.Format("2006-01-02"),
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		Duration:           a.Duration,
		SessionType:        string(a.Kind),
		SessionMode:        string(a.Mode),
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		Rating:             a.Rating,
		Review:             a.Review,
		Amount:             a.Amount,
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePartition(r.Context(), auth.PartitionClient)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var params appointment.BookParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, s.logger, err)
		return
	}
	appt, err := s.appts.Book(r.Context(), p.ID(), params)
	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrSlotUnavailable):
			metrics.ObserveBooking("conflict")
		case errors.Is(err, appointment.ErrInvalidInput), errors.Is(err, appointment.ErrProviderUnavailable):
			metrics.ObserveBooking("rejected")
		default:
			metrics.ObserveBooking("error")
		}
		writeError(w, s.logger, err)
		return
	}
	metrics.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, renderAppt(appt))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireOneOf(r.Context(), auth.PartitionClient, auth.PartitionProvider)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		Status             appointment.Status `json:"status"`
		Notes              *string            `json:"notes,omitempty"`
		CancellationReason *string            `json:"cancellation_reason,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	appt, err := s.appts.SetStatus(r.Context(), chi.URLParam(r, "id"), p, body.Status, body.Notes, body.CancellationReason)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAppt(appt))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePartition(r.Context(), auth.PartitionClient)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		Reason *string `json:"cancellation_reason,omitempty"`
	}
	// body is optional on cancel
	_ = decodeJSON(r, &body)
	appt, err := s.appts.Cancel(r.Context(), chi.URLParam(r, "id"), p, body.Reason)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAppt(appt))
}

func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequirePartition(r.Context(), auth.PartitionClient); err != nil {
		writeError(w, s.logger, err)
		return
	}
	slots, err := s.appts.AvailableSlots(r.Context(), chi.URLParam(r, "providerId"), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available_slots": slots})
}

func (s *Server) handleAttachReview(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePartition(r.Context(), auth.PartitionClient)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		Rating int     `json:"rating"`
		Review *string `json:"review,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	appt, err := s.appts.AttachReview(r.Context(), chi.URLParam(r, "id"), p.ID(), body.Rating, body.Review)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAppt(appt))
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	appt, err := s.appts.Get(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAppt(appt))
}
