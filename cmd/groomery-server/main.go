package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/availability"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/config"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/gcal"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/notify"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/schedule"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/service/booking"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/store/postgres"
	"github.com/linderfish/looking-glass-groomery-sub000/internal/transport/rest"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "groomery-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "groomery-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	hours, err := loadHours(cfg)
	if err != nil {
		log.Error("business hours config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	remote, err := gcal.NewSource(context.Background(), gcalConfig(cfg, log), log)
	if err != nil {
		log.Error("google calendar setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.RedisAddr != "" {
		enqueuer := notify.NewEnqueuer(cfg.RedisAddr)
		defer func() {
			if err := enqueuer.Close(); err != nil {
				log.Warn("notifier close failed", slog.Any("err", err))
			}
		}()
		notifier = enqueuer
		log.Info("notification queue connected", slog.String("redis_addr", cfg.RedisAddr))
	}

	buffer := time.Duration(cfg.BookingBufferMinutes) * time.Minute
	repo := postgres.NewBookingRepo(db)
	engine := availability.NewEngine(hours, buffer,
		availability.NewLocalAppointmentSource(repo, buffer), remote)
	svc := booking.NewService(repo, engine, remote, notifier, buffer, log)

	if parseLogLevel(cfg.LogLevel) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest.NewRouter(svc, db, log)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, srv, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func loadHours(cfg config.Config) (*schedule.WeeklyHours, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	days := make(map[time.Weekday]schedule.DayHours)
	for wd, raw := range cfg.Hours {
		h, err := schedule.ParseDayHours(raw)
		if err != nil {
			return nil, err
		}
		if h != nil {
			days[wd] = *h
		}
	}
	return schedule.NewWeeklyHours(loc, days)
}

func gcalConfig(cfg config.Config, log *slog.Logger) gcal.Config {
	out := gcal.Config{
		CalendarID: cfg.GoogleCalendarID,
		Timeout:    cfg.RemoteCalendarTimeout,
	}
	if cfg.GoogleCredentialsFile != "" {
		b, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			log.Warn("google credentials unreadable; remote calendar disabled", slog.Any("err", err))
			return out
		}
		out.CredentialsJSON = b
	}
	if cfg.GoogleTokenFile != "" {
		b, err := os.ReadFile(cfg.GoogleTokenFile)
		if err != nil {
			log.Warn("google token unreadable; remote calendar disabled", slog.Any("err", err))
			return out
		}
		out.TokenJSON = b
	}
	return out
}

func shutdown(log *slog.Logger, srv *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; forcing close", slog.Any("err", err))
		_ = srv.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
