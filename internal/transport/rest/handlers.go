package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/availability"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/service/booking"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/store"
)

type bookingService interface {
	CanBook(ctx context.Context, start time.Time, durationMinutes int) (availability.Decision, error)
	ListOpenSlots(ctx context.Context, from time.Time, days, durationMinutes, limit int) ([]availability.Slot, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	List(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

type handlers struct {
	svc bookingService
	log *slog.Logger
}

func newHandlers(svc bookingService, log *slog.Logger) handlers {
	if log == nil {
		log = slog.Default()
	}
	return handlers{svc: svc, log: log.With(slog.String("component", "rest"))}
}

type appointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	PetName         string    `json:"pet_name"`
	Service         string    `json:"service"`
	Notes           string    `json:"notes,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		CustomerName:    a.CustomerName,
		CustomerPhone:   a.CustomerPhone,
		PetName:         a.PetName,
		Service:         a.Service,
		Notes:           a.Notes,
		ScheduledAt:     a.ScheduledAt,
		EndTime:         a.EndTime,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
	}
}

// GET /v1/availability?start=RFC3339&duration_minutes=60
func (h handlers) canBook(c *gin.Context) {
	start, ok := parseTimeParam(c, "start")
	if !ok {
		return
	}
	durationMinutes, ok := parseIntParam(c, "duration_minutes", 0)
	if !ok {
		return
	}

	dec, err := h.svc.CanBook(c.Request.Context(), start, durationMinutes)
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"available": dec.Available}
	if dec.ConflictReason != "" {
		body["conflict_reason"] = dec.ConflictReason
	}
	c.JSON(http.StatusOK, body)
}

// GET /v1/slots?from=RFC3339&days=7&duration_minutes=60&limit=20
func (h handlers) listOpenSlots(c *gin.Context) {
	from, ok := parseTimeParam(c, "from")
	if !ok {
		return
	}
	days, ok := parseIntParam(c, "days", 7)
	if !ok {
		return
	}
	durationMinutes, ok := parseIntParam(c, "duration_minutes", 0)
	if !ok {
		return
	}
	limit, ok := parseIntParam(c, "limit", 0)
	if !ok {
		return
	}

	slots, err := h.svc.ListOpenSlots(c.Request.Context(), from, days, durationMinutes, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	type slotResponse struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
		Label string    `json:"label"`
	}
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{Start: s.Start, End: s.End, Label: s.Label})
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

type bookRequest struct {
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	PetName         string    `json:"pet_name"`
	Service         string    `json:"service"`
	Notes           string    `json:"notes"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// POST /v1/appointments
func (h handlers) book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appt, err := h.svc.Book(c.Request.Context(), booking.BookInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		PetName:         req.PetName,
		Service:         req.Service,
		Notes:           req.Notes,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("X-Idempotency-Key")),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"appointment": toAppointmentResponse(appt)})
}

// GET /v1/appointments?from=RFC3339&to=RFC3339
func (h handlers) listAppointments(c *gin.Context) {
	from, ok := parseTimeParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(c, "to")
	if !ok {
		return
	}

	appts, err := h.svc.List(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"appointments": out})
}

// POST /v1/appointments/:id/cancel
func (h handlers) cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	appt, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": toAppointmentResponse(appt)})
}

// writeError maps service outcomes onto status codes: invalid input is 400,
// a negative booking decision is 409 with the customer-facing reason, an
// unknown id is 404, anything else is a 500 with no detail leaked.
func (h handlers) writeError(c *gin.Context, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		return
	}

	var rej *booking.RejectedError
	if errors.As(err, &rej) {
		c.JSON(http.StatusConflict, gin.H{"available": false, "error": rej.Reason})
		return
	}

	if errors.Is(err, store.ErrIdempotencyConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "This request key was already used for a different appointment."})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}

	h.log.Error("request failed", slog.Any("err", err), slog.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong on our end. Please try again."})
}

func parseTimeParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC3339"})
		return time.Time{}, false
	}
	return t, true
}

func parseIntParam(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}
