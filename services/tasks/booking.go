package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeBookingDispatch = "booking:dispatch"
	TypeBookingExpire   = "booking:expire"
)

// BookingTaskPayload is the body of every booking task.
type BookingTaskPayload struct {
	BookingID string `json:"bookingId"`
}

func NewDispatchTask(bookingID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(BookingTaskPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingDispatch, b)
	opts := []asynq.Option{asynq.MaxRetry(5), asynq.TaskID("dispatch:" + bookingID)}
	return task, opts, nil
}

func NewExpireTask(bookingID string, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(BookingTaskPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingExpire, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt), asynq.MaxRetry(5), asynq.TaskID("expire:" + bookingID)}
	return task, opts, nil
}

// ParseBookingTask decodes a booking task body.
func ParseBookingTask(t *asynq.Task) (BookingTaskPayload, error) {
	var p BookingTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	if p.BookingID == "" {
		return p, fmt.Errorf("%s payload has no booking id", t.Type())
	}
	return p, nil
}

// Enqueuer is the part of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler queues matching tasks on asynq.
type Scheduler struct {
	client Enqueuer
}

func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{client: client}
}

func (s *Scheduler) ScheduleDispatch(ctx context.Context, bookingID string) error {
	task, opts, err := NewDispatchTask(bookingID)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue dispatch for %s: %w", bookingID, err)
	}
	return nil
}

func (s *Scheduler) ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error {
	task, opts, err := NewExpireTask(bookingID, at)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue expiry for %s: %w", bookingID, err)
	}
	return nil
}
