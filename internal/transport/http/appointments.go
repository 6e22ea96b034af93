package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"salonsched/internal/domain"
	"salonsched/internal/service/booking"
)

// BookingService is the slice of the booking service the transport needs.
type BookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (domain.Appointment, error)
	Update(ctx context.Context, companyID, appointmentID uuid.UUID, in booking.UpdateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error)
	Delete(ctx context.Context, companyID, appointmentID uuid.UUID) error
	Get(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, companyID uuid.UUID, staffID *uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	AvailableSlots(ctx context.Context, companyID, staffID uuid.UUID, day time.Time, duration, step time.Duration) ([]time.Time, error)
}

type createAppointmentRequest struct {
	ClientID  uuid.UUID `json:"client_id"`
	ServiceID uuid.UUID `json:"service_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Notes     string    `json:"notes"`
}

type updateAppointmentRequest struct {
	ClientID  *uuid.UUID `json:"client_id"`
	ServiceID *uuid.UUID `json:"service_id"`
	StaffID   *uuid.UUID `json:"staff_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    *string    `json:"status"`
	Notes     *string    `json:"notes"`
}

type appointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	CompanyID       uuid.UUID `json:"company_id"`
	ClientID        uuid.UUID `json:"client_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	StaffID         uuid.UUID `json:"staff_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type availabilityResponse struct {
	StaffID uuid.UUID   `json:"staff_id"`
	Date    string      `json:"date"`
	Slots   []time.Time `json:"slots"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		CompanyID:       a.CompanyID,
		ClientID:        a.ClientID,
		ServiceID:       a.ServiceID,
		StaffID:         a.StaffID,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          string(a.Status),
		Notes:           a.Notes,
		ExternalEventID: a.ExternalEventID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateInput{
		CompanyID:      companyID(r.Context()),
		ClientID:       req.ClientID,
		ServiceID:      req.ServiceID,
		StaffID:        req.StaffID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	in := booking.UpdateInput{
		ClientID:  req.ClientID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if req.Status != nil {
		st := domain.AppointmentStatus(*req.Status)
		in.Status = &st
	}

	appt, err := h.svc.Update(r.Context(), companyID(r.Context()), id, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(r.Context(), companyID(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), companyID(r.Context()), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), companyID(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "from must be RFC 3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "to must be RFC 3339"})
		return
	}

	var staffID *uuid.UUID
	if raw := q.Get("staff_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "staff_id must be a UUID"})
			return
		}
		staffID = &id
	}

	appts, err := h.svc.List(r.Context(), companyID(r.Context()), staffID, from, to)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	staffID, err := uuid.Parse(q.Get("staff_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "staff_id must be a UUID"})
		return
	}
	day, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD"})
		return
	}
	duration, err := minutesParam(q.Get("duration_minutes"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "duration_minutes must be a positive integer"})
		return
	}
	step := duration
	if raw := q.Get("step_minutes"); raw != "" {
		step, err = minutesParam(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "step_minutes must be a positive integer"})
			return
		}
	}

	slots, err := h.svc.AvailableSlots(r.Context(), companyID(r.Context()), staffID, day, duration, step)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		StaffID: staffID,
		Date:    q.Get("date"),
		Slots:   slots,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "appointment id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func minutesParam(raw string) (time.Duration, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("minutes must be positive, got %d", n)
	}
	return time.Duration(n) * time.Minute, nil
}
