// Package gcal reads the groomer's personal Google Calendar as a secondary
// busy source. It is deliberately fail-open: the shop must keep taking
// bookings when the calendar is unreachable, unconfigured, or slow, so every
// failure here degrades to "no remote data" and a log line.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
)

const defaultTimeout = 4 * time.Second

// freeBusyAPI is the slice of the Calendar API the source calls. The real
// implementation wraps the generated client; tests substitute a fake.
type freeBusyAPI interface {
	Query(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error)
}

type googleFreeBusy struct {
	svc *calendar.Service
}

func (g googleFreeBusy) Query(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error) {
	return g.svc.Freebusy.Query(req).Context(ctx).Do()
}

// Config carries the OAuth material for the groomer's calendar. Leaving
// CalendarID or the credentials empty means "not connected", which is a
// normal state, not an error.
type Config struct {
	CalendarID      string
	CredentialsJSON []byte
	TokenJSON       []byte
	Timeout         time.Duration
}

func (c Config) configured() bool {
	return c.CalendarID != "" && len(c.CredentialsJSON) > 0 && len(c.TokenJSON) > 0
}

type Source struct {
	api        freeBusyAPI // nil when not connected
	calendarID string
	timeout    time.Duration
	log        *slog.Logger
}

// NewSource builds the remote source. An unconfigured Config yields a source
// that reports no busy time; only malformed credentials are an error, since
// that is an operator mistake worth failing loudly on at startup.
func NewSource(ctx context.Context, cfg Config, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "gcal"))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Source{calendarID: cfg.CalendarID, timeout: timeout, log: log}
	if !cfg.configured() {
		log.Info("google calendar not connected; remote busy source disabled")
		return s, nil
	}

	oauthCfg, err := google.ConfigFromJSON(cfg.CredentialsJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: parse credentials: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(cfg.TokenJSON, &token); err != nil {
		return nil, fmt.Errorf("gcal: parse token: %w", err)
	}

	// The token source refreshes before expiry on its own; the engine never
	// sees auth state.
	client := oauthCfg.Client(ctx, &token)
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gcal: build calendar client: %w", err)
	}

	s.api = googleFreeBusy{svc: svc}
	log.Info("google calendar connected", slog.String("calendar_id", cfg.CalendarID))
	return s, nil
}

func (s *Source) IsConfigured() bool {
	return s.api != nil
}

// FetchBusy returns the calendar's busy spans inside the window. It never
// returns an error: remote trouble is logged and read as an empty calendar.
func (s *Source) FetchBusy(ctx context.Context, window domain.TimeInterval) ([]domain.BusyBlock, error) {
	if s.api == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.api.Query(ctx, &calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: s.calendarID}},
	})
	if err != nil {
		s.log.Warn("free/busy query failed; continuing with local data only", slog.Any("err", err))
		return nil, nil
	}

	cal, ok := resp.Calendars[s.calendarID]
	if !ok {
		s.log.Warn("free/busy response missing calendar", slog.String("calendar_id", s.calendarID))
		return nil, nil
	}
	for _, e := range cal.Errors {
		s.log.Warn("free/busy calendar error", slog.String("reason", e.Reason))
	}

	blocks := make([]domain.BusyBlock, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			s.log.Warn("skipping busy period with bad start", slog.String("start", p.Start))
			continue
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			s.log.Warn("skipping busy period with bad end", slog.String("end", p.End))
			continue
		}
		if !end.After(start) {
			continue
		}
		// Remote events are busy exactly as reported; no buffer.
		blocks = append(blocks, domain.BusyBlock{
			TimeInterval: domain.TimeInterval{Start: start, End: end},
			Origin:       domain.BusyOriginRemote,
		})
	}
	return blocks, nil
}
