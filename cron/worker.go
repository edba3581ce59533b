package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"creatorhub/config"
	"creatorhub/models"
	"creatorhub/services/availability"
	"creatorhub/services/tasks"
	"creatorhub/utils"
)

// NewMux routes availability tasks to their handlers.
func NewMux(svc availability.BackgroundService, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeMirrorBooking, HandleMirrorBookingTask(svc, logger))
	mux.HandleFunc(tasks.TypeReleaseHold, HandleReleaseHoldTask(svc, logger))
	return mux
}

// InitWorker runs the task worker in the background and returns the server so
// the caller can shut it down.
func InitWorker(svc availability.BackgroundService) *asynq.Server {
	logger := utils.GetLogger().Named("worker")
	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(
		utils.QueueRedisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		},
	)
	mux := NewMux(svc, logger)

	go monitorRedisConnection(logger)

	go func() {
		logger.Info("starting task worker", zap.Int("concurrency", concurrency))
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("task worker failed to start",
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", maxAttempts),
				zap.Error(err))
			if attempts == maxAttempts {
				logger.Fatal("task worker gave up")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func HandleMirrorBookingTask(svc availability.BackgroundService, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.MirrorBookingPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid mirror payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := svc.MirrorBooking(ctx, p.BookingID, p.Provider); err != nil {
			logger.Warn("mirror failed, will retry",
				zap.String("bookingId", p.BookingID),
				zap.String("provider", p.Provider),
				zap.Error(err))
			return err
		}
		return nil
	}
}

func HandleReleaseHoldTask(svc availability.BackgroundService, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.HoldReleasePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid hold release payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return svc.ReleaseExpiredHold(ctx, p.BookingID)
	}
}

// monitorRedisConnection pings the queue database periodically to surface
// failures at runtime.
func monitorRedisConnection(logger *zap.Logger) {
	opt := utils.QueueRedisOpt()
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("queue redis connection lost", zap.Error(err))
		}
		cancel()
		time.Sleep(10 * time.Second)
	}
}
