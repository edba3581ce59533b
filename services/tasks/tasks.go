package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"creatorhub/models"
)

const (
	TypeMirrorBooking = "calendar:mirror_booking"
	TypeReleaseHold   = "booking:release_hold"
)

// NewMirrorBookingTask copies one booking to one provider. The task id makes
// re-enqueueing the same pair a no-op.
func NewMirrorBookingTask(payload models.MirrorBookingPayload, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeMirrorBooking, b)
	opts := []asynq.Option{
		asynq.TaskID("mirror:" + payload.BookingID + ":" + payload.Provider),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30 * time.Second),
	}
	return task, opts, nil
}

// NewReleaseHoldTask fires when a hold expires.
func NewReleaseHoldTask(payload models.HoldReleasePayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReleaseHold, b)
	opts := []asynq.Option{
		asynq.TaskID("release:" + payload.BookingID),
		asynq.ProcessAt(fireAt),
		asynq.MaxRetry(3),
	}
	return task, opts, nil
}

// Enqueuer puts availability follow-up work on the asynq queue.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	if maxRetry <= 0 {
		maxRetry = 8
	}
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

func (e *Enqueuer) EnqueueMirror(ctx context.Context, payload models.MirrorBookingPayload) error {
	task, opts, err := NewMirrorBookingTask(payload, e.maxRetry)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts)
}

func (e *Enqueuer) EnqueueHoldRelease(ctx context.Context, payload models.HoldReleasePayload, at time.Time) error {
	task, opts, err := NewReleaseHoldTask(payload, at)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	_, err := e.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (e *Enqueuer) Close() error { return e.client.Close() }
