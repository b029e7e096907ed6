// Package notify hands booking events to the out-of-process notification
// worker (owner Telegram pings, customer confirmations). Delivery itself is
// someone else's job; this package only enqueues.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeBookingConfirmed = "booking:confirmed"

	queueName = "notifications"
)

// BookingConfirmedEvent is the payload the notification worker consumes.
type BookingConfirmedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerName  string    `json:"customer_name"`
	PetName       string    `json:"pet_name"`
	Service       string    `json:"service"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	EndTime       time.Time `json:"end_time"`
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error
}

// Enqueuer publishes events onto the asynq-backed notifications queue.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisAddr string) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (e *Enqueuer) BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeBookingConfirmed, payload)
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(5))
	return err
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Noop is used when no Redis is configured (local development, tests).
type Noop struct{}

func (Noop) BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	return nil
}
