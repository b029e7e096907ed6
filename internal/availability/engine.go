// Package availability decides whether slots can be booked. It merges busy
// spans from the appointment store and the remote calendar, applies the
// shop's opening hours, and enumerates open slots for the chat layer to
// offer. It holds no state of its own and takes no locks; the booking
// transaction is responsible for making its answer stick.
package availability

import (
	"context"
	"time"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/schedule"
)

const slotConflictReason = "This time slot is already booked"

// DefaultGranularity is the candidate-slot step when the caller does not ask
// for another one.
const DefaultGranularity = 30 * time.Minute

// SlotProposal is one requested booking span. Built per request, never stored.
type SlotProposal struct {
	Start    time.Time
	Duration time.Duration
}

func (p SlotProposal) Interval() domain.TimeInterval {
	return domain.TimeInterval{Start: p.Start, End: p.Start.Add(p.Duration)}
}

// Decision is the engine's answer for one proposal. Not available always
// comes with a reason the chat layer can hand straight to the customer.
type Decision struct {
	Available      bool
	ConflictReason string
}

// Slot is one bookable opening, labeled for display.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

type Engine struct {
	hours   *schedule.WeeklyHours
	sources []BusySource
	buffer  time.Duration
	now     func() time.Time
}

// NewEngine builds the engine over the given busy sources. The buffer widens
// the conflict window on both sides of every lookup.
func NewEngine(hours *schedule.WeeklyHours, buffer time.Duration, sources ...BusySource) *Engine {
	return &Engine{
		hours:   hours,
		sources: sources,
		buffer:  buffer,
		now:     time.Now,
	}
}

// CanBook answers whether the proposal may be booked right now. The hours
// check runs first so an out-of-hours request never touches the stores.
func (e *Engine) CanBook(ctx context.Context, p SlotProposal) (Decision, error) {
	return e.CanBookUsing(ctx, p, e.sources...)
}

// CanBookUsing is CanBook against an explicit source set. The booking
// transaction re-runs the decision through it with a transaction-bound local
// source, so the final answer and the insert are serialized together.
func (e *Engine) CanBookUsing(ctx context.Context, p SlotProposal, sources ...BusySource) (Decision, error) {
	iv := p.Interval()

	if ok, reason := e.hours.CheckWithinHours(iv); !ok {
		return Decision{Available: false, ConflictReason: reason}, nil
	}

	busy, err := e.mergedBusy(ctx, iv.Pad(e.buffer), sources)
	if err != nil {
		return Decision{}, err
	}

	if domain.OverlapsAny(iv, busy) {
		return Decision{Available: false, ConflictReason: slotConflictReason}, nil
	}
	return Decision{Available: true}, nil
}

// ListOpenSlots walks each open day in [from, from+days) from open to
// close-duration in granularity steps and keeps the candidates that start
// after now and clear that day's merged busy spans. Busy spans are fetched
// once per day, not per candidate. The engine does not cap the result; the
// caller decides how many to show.
func (e *Engine) ListOpenSlots(ctx context.Context, from time.Time, days int, duration, granularity time.Duration) ([]Slot, error) {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	now := e.now()
	loc := e.hours.Location()

	var out []Slot
	first := from.In(loc)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		window, open := e.hours.WindowFor(day)
		if !open {
			continue
		}

		busy, err := e.mergedBusy(ctx, window.Pad(e.buffer), e.sources)
		if err != nil {
			return nil, err
		}

		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(granularity) {
			if !start.After(now) {
				continue
			}
			iv := domain.TimeInterval{Start: start, End: start.Add(duration)}
			if domain.OverlapsAny(iv, busy) {
				continue
			}
			out = append(out, Slot{
				Start: start,
				End:   iv.End,
				Label: start.In(loc).Format("Monday, Jan 2 at 3:04 PM"),
			})
		}
	}
	return out, nil
}

func (e *Engine) mergedBusy(ctx context.Context, window domain.TimeInterval, sources []BusySource) ([]domain.TimeInterval, error) {
	var blocks []domain.BusyBlock
	for _, src := range sources {
		b, err := src.FetchBusy(ctx, window)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b...)
	}
	return domain.MergeBusyBlocks(blocks), nil
}
