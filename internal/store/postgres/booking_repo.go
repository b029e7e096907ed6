package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/store"
)

// calendarLockKey feeds pg_advisory_xact_lock: one groomer, one calendar, so
// every booking transaction contends on the same key.
const calendarLockKey = "groomery:calendar"

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) FindOccupying(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error) {
	return findOccupying(ctx, r.db, window)
}

func (r *BookingRepo) List(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("scheduled_at < ?", window.End).
		Where("end_time > ?", window.Start).
		OrderExpr("scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

// Cancel flips an occupying appointment to CANCELLED, which releases its slot
// (the occupying-status filter excludes it from every busy query). Cancelling
// an appointment that is already finished or unknown is ErrNotFound.
func (r *BookingRepo) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.StatusCancelled).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("status IN (?)", bun.In(domain.OccupyingStatuses)).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BookingRepo) InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockCalendar(ctx context.Context, tx bun.Tx) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", calendarLockKey).Exec(ctx)
	return err
}

func (t bookingTx) FindOccupying(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error) {
	return findOccupying(ctx, t.tx, window)
}

func findOccupying(ctx context.Context, idb bun.IDB, window domain.TimeInterval) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := idb.NewSelect().
		Model(&rows).
		Where("scheduled_at < ?", window.End).
		Where("end_time > ?", window.Start).
		Where("status IN (?)", bun.In(domain.OccupyingStatuses)).
		OrderExpr("scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				return t.resolveIdempotentReplay(ctx, appt, m.ID, err)
			}
		}
		return domain.Appointment{}, err
	}

	return m, nil
}

// resolveIdempotentReplay handles a duplicate primary key: with deterministic
// idempotency-key ids a replay of the same draft returns the original row,
// while the same key on a different draft is a distinct conflict.
func (t bookingTx) resolveIdempotentReplay(ctx context.Context, appt domain.Appointment, id uuid.UUID, insertErr error) (domain.Appointment, error) {
	var existing domain.Appointment
	err := t.tx.NewSelect().
		Model(&existing).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, insertErr
	}

	if existing.CustomerName != appt.CustomerName ||
		existing.PetName != appt.PetName ||
		existing.Service != appt.Service ||
		!existing.ScheduledAt.Equal(appt.ScheduledAt) ||
		!existing.EndTime.Equal(appt.EndTime) {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}

	return existing, nil
}
