package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
)

// BusySource reports booked spans inside a window. Implementations decide
// their own failure policy: the local store is authoritative and errors hard,
// the remote calendar degrades to empty (see internal/gcal).
type BusySource interface {
	FetchBusy(ctx context.Context, window domain.TimeInterval) ([]domain.BusyBlock, error)
}

// OccupyingFinder is the store slice the local source needs. Both the
// repository and its transaction view satisfy it.
type OccupyingFinder interface {
	FindOccupying(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error)
}

// LocalAppointmentSource projects occupying appointments into busy blocks.
// Each block is widened by the booking buffer on both sides: the buffer is a
// property of how a grooming appointment occupies the day (setup, cleanup,
// handover), not of the merge step.
type LocalAppointmentSource struct {
	store  OccupyingFinder
	buffer time.Duration
}

func NewLocalAppointmentSource(store OccupyingFinder, buffer time.Duration) *LocalAppointmentSource {
	return &LocalAppointmentSource{store: store, buffer: buffer}
}

func (s *LocalAppointmentSource) FetchBusy(ctx context.Context, window domain.TimeInterval) ([]domain.BusyBlock, error) {
	appts, err := s.store.FindOccupying(ctx, window.Pad(s.buffer))
	if err != nil {
		return nil, fmt.Errorf("local busy lookup: %w", err)
	}

	blocks := make([]domain.BusyBlock, 0, len(appts))
	for _, a := range appts {
		blocks = append(blocks, domain.BusyBlock{
			TimeInterval: domain.TimeInterval{Start: a.ScheduledAt, End: a.EndTime}.Pad(s.buffer),
			Origin:       domain.BusyOriginLocal,
			ReferenceID:  a.ID.String(),
		})
	}
	return blocks, nil
}

// StaticSource serves a fixed set of blocks. The booking transaction uses it
// to replay remote blocks fetched before the transaction opened.
type StaticSource []domain.BusyBlock

func (s StaticSource) FetchBusy(ctx context.Context, window domain.TimeInterval) ([]domain.BusyBlock, error) {
	out := make([]domain.BusyBlock, 0, len(s))
	for _, b := range s {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}
