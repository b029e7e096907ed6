// Package booking coordinates a booking attempt end to end: validate the
// request, check availability, then re-check inside the serialized store
// transaction immediately before insert so two concurrent customers cannot
// both win the same slot.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/availability"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/notify"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// RejectedError is a normal negative booking decision, not a fault: the slot
// is outside hours, already taken, or was taken by a concurrent winner while
// this attempt was in flight. The reason reads well in a chat reply.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

const raceLostReason = "That time was just taken and is no longer available"

const (
	maxDuration = 8 * time.Hour
	maxDaysOut  = 60
)

// DefaultSlotLimit caps how many open slots a listing returns unless the
// caller asks for a different cap.
const DefaultSlotLimit = 20

type Service struct {
	store    store.AppointmentStore
	engine   *availability.Engine
	remote   availability.BusySource
	notifier notify.Notifier
	buffer   time.Duration
	log      *slog.Logger
}

func NewService(st store.AppointmentStore, engine *availability.Engine, remote availability.BusySource, notifier notify.Notifier, buffer time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    st,
		engine:   engine,
		remote:   remote,
		notifier: notifier,
		buffer:   buffer,
		log:      log.With(slog.String("component", "booking")),
	}
}

// CanBook answers the availability question without reserving anything.
// Booking afterwards still goes through Book, which re-checks.
func (s *Service) CanBook(ctx context.Context, start time.Time, durationMinutes int) (availability.Decision, error) {
	if err := validateSlot(start, durationMinutes); err != nil {
		return availability.Decision{}, err
	}
	return s.engine.CanBook(ctx, availability.SlotProposal{
		Start:    start,
		Duration: time.Duration(durationMinutes) * time.Minute,
	})
}

// ListOpenSlots enumerates bookable openings for the chat layer to offer.
func (s *Service) ListOpenSlots(ctx context.Context, from time.Time, days, durationMinutes, limit int) ([]availability.Slot, error) {
	if from.IsZero() {
		return nil, validationError("from is required")
	}
	if days < 1 || days > maxDaysOut {
		return nil, validationError(fmt.Sprintf("days must be between 1 and %d", maxDaysOut))
	}
	if err := validateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSlotLimit
	}

	slots, err := s.engine.ListOpenSlots(ctx, from, days,
		time.Duration(durationMinutes)*time.Minute, availability.DefaultGranularity)
	if err != nil {
		return nil, err
	}
	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

type BookInput struct {
	CustomerName    string
	CustomerPhone   string
	PetName         string
	Service         string
	Notes           string
	Start           time.Time
	DurationMinutes int
	IdempotencyKey  string
}

// Book validates, pre-checks availability, then commits inside a serialized
// transaction with a second availability check against transaction-bound
// local data. Remote busy spans are fetched once, before the transaction:
// the remote calendar is read-only and fail-open, so the only race worth
// closing is the local one.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	customer := strings.TrimSpace(in.CustomerName)
	if customer == "" {
		return domain.Appointment{}, validationError("customer_name is required")
	}
	pet := strings.TrimSpace(in.PetName)
	if pet == "" {
		return domain.Appointment{}, validationError("pet_name is required")
	}
	service := strings.TrimSpace(in.Service)
	if service == "" {
		return domain.Appointment{}, validationError("service is required")
	}
	if err := validateSlot(in.Start, in.DurationMinutes); err != nil {
		return domain.Appointment{}, err
	}

	duration := time.Duration(in.DurationMinutes) * time.Minute
	proposal := availability.SlotProposal{Start: in.Start, Duration: duration}

	draft := domain.Appointment{
		CustomerName:    customer,
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		PetName:         pet,
		Service:         service,
		Notes:           in.Notes,
		ScheduledAt:     in.Start,
		EndTime:         in.Start.Add(duration),
		DurationMinutes: in.DurationMinutes,
		Status:          domain.StatusConfirmed,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		draft.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("groomery:book:"+key))

		// A retry of an already committed booking must short-circuit here:
		// its own row occupies the slot, so the availability checks below
		// would reject the replay.
		if existing, err := s.store.GetByID(ctx, draft.ID); err == nil {
			if existing.CustomerName != draft.CustomerName ||
				existing.PetName != draft.PetName ||
				existing.Service != draft.Service ||
				!existing.ScheduledAt.Equal(draft.ScheduledAt) ||
				!existing.EndTime.Equal(draft.EndTime) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, err
		}
	}

	remoteBlocks, err := s.remote.FetchBusy(ctx, proposal.Interval().Pad(s.buffer))
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("remote busy lookup: %w", err)
	}

	localSource := availability.NewLocalAppointmentSource(s.store, s.buffer)
	decision, err := s.engine.CanBookUsing(ctx, proposal, localSource, availability.StaticSource(remoteBlocks))
	if err != nil {
		return domain.Appointment{}, err
	}
	if !decision.Available {
		return domain.Appointment{}, &RejectedError{Reason: decision.ConflictReason}
	}

	var out domain.Appointment
	err = s.store.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		recheck, err := s.engine.CanBookUsing(ctx, proposal,
			availability.NewLocalAppointmentSource(tx, s.buffer),
			availability.StaticSource(remoteBlocks))
		if err != nil {
			return err
		}
		if !recheck.Available {
			return &RejectedError{Reason: raceLostReason}
		}

		created, err := tx.InsertAppointment(ctx, draft)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				// The exclusion constraint caught what the re-check missed.
				return &RejectedError{Reason: raceLostReason}
			}
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.log.Info("appointment booked",
		slog.String("appointment_id", out.ID.String()),
		slog.Time("scheduled_at", out.ScheduledAt),
		slog.Time("end_time", out.EndTime),
	)

	if err := s.notifier.BookingConfirmed(ctx, notify.BookingConfirmedEvent{
		AppointmentID: out.ID,
		CustomerName:  out.CustomerName,
		PetName:       out.PetName,
		Service:       out.Service,
		ScheduledAt:   out.ScheduledAt,
		EndTime:       out.EndTime,
	}); err != nil {
		// The booking stands either way; the worker has retries of its own.
		s.log.Warn("booking notification enqueue failed",
			slog.Any("err", err),
			slog.String("appointment_id", out.ID.String()),
		)
	}

	return out, nil
}

func (s *Service) List(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	if to.Equal(from) || to.Before(from) {
		return nil, validationError("to must be after from")
	}
	return s.store.List(ctx, domain.TimeInterval{Start: from, End: to})
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	appt, err := s.store.Cancel(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()))
	return appt, nil
}

func validateSlot(start time.Time, durationMinutes int) error {
	if start.IsZero() {
		return validationError("start_time is required")
	}
	return validateDuration(durationMinutes)
}

func validateDuration(durationMinutes int) error {
	if durationMinutes <= 0 {
		return validationError("duration_minutes must be positive")
	}
	if time.Duration(durationMinutes)*time.Minute > maxDuration {
		return validationError("duration too long")
	}
	return nil
}
