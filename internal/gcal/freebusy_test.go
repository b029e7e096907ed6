package gcal

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
)

type fakeAPI struct {
	resp *calendar.FreeBusyResponse
	err  error
	wait time.Duration
}

func (f *fakeAPI) Query(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error) {
	if f.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.wait):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testWindow() domain.TimeInterval {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return domain.TimeInterval{Start: start, End: start.Add(9 * time.Hour)}
}

func testSource(api freeBusyAPI) *Source {
	return &Source{
		api:        api,
		calendarID: "groomer@example.com",
		timeout:    defaultTimeout,
		log:        slog.Default(),
	}
}

func TestFetchBusy_Unconfigured(t *testing.T) {
	src, err := NewSource(context.Background(), Config{}, slog.Default())
	if err != nil {
		t.Fatalf("NewSource error: %v", err)
	}
	if src.IsConfigured() {
		t.Fatalf("empty config must read as not connected")
	}

	blocks, err := src.FetchBusy(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("FetchBusy error: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("len(blocks) = %d, want 0", len(blocks))
	}
}

func TestNewSource_RejectsMalformedCredentials(t *testing.T) {
	_, err := NewSource(context.Background(), Config{
		CalendarID:      "groomer@example.com",
		CredentialsJSON: []byte("{not json"),
		TokenJSON:       []byte(`{"access_token":"x"}`),
	}, slog.Default())
	if err == nil {
		t.Fatalf("expected error for malformed credentials")
	}
}

func TestFetchBusy_MapsBusyPeriods(t *testing.T) {
	src := testSource(&fakeAPI{resp: &calendar.FreeBusyResponse{
		Calendars: map[string]calendar.FreeBusyCalendar{
			"groomer@example.com": {
				Busy: []*calendar.TimePeriod{
					{Start: "2026-03-02T13:00:00Z", End: "2026-03-02T14:00:00Z"},
					{Start: "2026-03-02T15:30:00Z", End: "2026-03-02T16:00:00Z"},
				},
			},
		},
	}})

	blocks, err := src.FetchBusy(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("FetchBusy error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	if blocks[0].Origin != domain.BusyOriginRemote {
		t.Fatalf("origin = %q, want %q", blocks[0].Origin, domain.BusyOriginRemote)
	}
	wantStart := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	if !blocks[0].Start.Equal(wantStart) {
		t.Fatalf("block start = %v, want %v", blocks[0].Start, wantStart)
	}
}

func TestFetchBusy_FailsOpenOnError(t *testing.T) {
	src := testSource(&fakeAPI{err: errors.New("network down")})

	blocks, err := src.FetchBusy(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("remote failure must not surface as an error, got %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("len(blocks) = %d, want 0", len(blocks))
	}
}

func TestFetchBusy_FailsOpenOnTimeout(t *testing.T) {
	src := testSource(&fakeAPI{wait: time.Second})
	src.timeout = 5 * time.Millisecond

	blocks, err := src.FetchBusy(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("timeout must not surface as an error, got %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("len(blocks) = %d, want 0", len(blocks))
	}
}

func TestFetchBusy_SkipsMalformedPeriods(t *testing.T) {
	src := testSource(&fakeAPI{resp: &calendar.FreeBusyResponse{
		Calendars: map[string]calendar.FreeBusyCalendar{
			"groomer@example.com": {
				Busy: []*calendar.TimePeriod{
					{Start: "not-a-time", End: "2026-03-02T14:00:00Z"},
					{Start: "2026-03-02T15:00:00Z", End: "2026-03-02T15:00:00Z"},
					{Start: "2026-03-02T16:00:00Z", End: "2026-03-02T16:30:00Z"},
				},
			},
		},
	}})

	blocks, err := src.FetchBusy(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("FetchBusy error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1 (malformed and empty periods dropped)", len(blocks))
	}
}
