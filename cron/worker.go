package cron

import (
	"context"
	"errors"
	"time"

	"pawbook/config"
	"pawbook/models"
	"pawbook/services/matching"
	"pawbook/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// MatchingRunner executes deferred matching work.
type MatchingRunner interface {
	Dispatch(ctx context.Context, bookingID string) (*models.BookingRequest, error)
	Expire(ctx context.Context, bookingID string) (*models.BookingRequest, error)
}

// QueueRedisOpt is the asynq connection shared by the worker and the scheduler client.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewMux registers the booking task handlers.
func NewMux(runner MatchingRunner, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingDispatch, handleDispatchTask(runner, logger))
	mux.HandleFunc(tasks.TypeBookingExpire, handleExpireTask(runner, logger))
	return mux
}

// InitMatchingWorker runs the async worker in background and returns the server for shutdown.
func InitMatchingWorker(runner MatchingRunner, logger *zap.Logger) *asynq.Server {
	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := NewMux(runner, logger)

	go monitorRedisConnection(logger)

	go func() {
		logger.Info("starting matching worker", zap.Int("concurrency", concurrency))
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("matching worker failed to start",
					zap.Int("attempt", attempts), zap.Int("max_attempts", maxAttempts), zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("matching worker gave up")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
	return srv
}

func handleDispatchTask(runner MatchingRunner, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseBookingTask(task)
		if err != nil {
			logger.Error("invalid dispatch task", zap.Error(err))
			return errors.Join(err, asynq.SkipRetry)
		}
		req, err := runner.Dispatch(ctx, p.BookingID)
		if errors.Is(err, matching.ErrBookingNotFound) {
			logger.Warn("dispatch for unknown booking", zap.String("booking_id", p.BookingID))
			return nil
		}
		if err != nil {
			logger.Error("dispatch failed", zap.String("booking_id", p.BookingID), zap.Error(err))
			return err
		}
		logger.Info("booking dispatched", zap.String("booking_id", req.ID), zap.String("status", string(req.Status)))
		return nil
	}
}

func handleExpireTask(runner MatchingRunner, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseBookingTask(task)
		if err != nil {
			logger.Error("invalid expire task", zap.Error(err))
			return errors.Join(err, asynq.SkipRetry)
		}
		_, err = runner.Expire(ctx, p.BookingID)
		var timeout *matching.MatchingTimeoutError
		switch {
		case errors.As(err, &timeout):
			logger.Info("open shift expired", zap.String("booking_id", timeout.BookingID), zap.Time("deadline", timeout.Deadline))
			return nil
		case errors.Is(err, matching.ErrBookingNotFound):
			return nil
		case err != nil:
			logger.Error("expire failed", zap.String("booking_id", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings the queue Redis periodically to detect failures at runtime.
func monitorRedisConnection(logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()
	for {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("queue redis connection lost", zap.Error(err))
		}
		time.Sleep(10 * time.Second)
	}
}
