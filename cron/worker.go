package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"fitbook/config"
	"fitbook/services/booking"
	"fitbook/services/calendar"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeCalendarSync = "calendar:sync"
	TypeStaleSweep   = "booking:sweep"
)

// CalendarSyncPayload is the task body for a calendar mirror attempt.
type CalendarSyncPayload struct {
	BookingID string `json:"bookingId"`
	Action    string `json:"action"` // "upsert" or "delete"
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskQueueDB,
	}
}

// TaskScheduler enqueues engine background work. It implements
// booking.CalendarScheduler; enqueue failures are logged and left to the
// next lifecycle transition or sweep pass, never propagated into a booking.
type TaskScheduler struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewTaskScheduler(logger *zap.Logger) *TaskScheduler {
	return &TaskScheduler{client: asynq.NewClient(redisOpts()), logger: logger}
}

func (s *TaskScheduler) EnqueueSync(bookingID, action string) {
	payload, err := json.Marshal(CalendarSyncPayload{BookingID: bookingID, Action: action})
	if err != nil {
		s.logger.Error("failed to marshal calendar sync payload", zap.Error(err))
		return
	}
	task := asynq.NewTask(TypeCalendarSync, payload)
	if _, err := s.client.Enqueue(task, asynq.MaxRetry(config.AppConfig.CalendarMaxRetries)); err != nil {
		s.logger.Error("failed to enqueue calendar sync",
			zap.String("bookingID", bookingID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// InitWorker runs the async worker in background: calendar sync attempts
// with asynq's exponential backoff, plus the recurring staleness sweep.
func InitWorker(syncSvc *calendar.SyncService, sweep *booking.StalenessSweep, logger *zap.Logger) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCalendarSync, handleCalendarSync(syncSvc))
	mux.HandleFunc(TypeStaleSweep, handleStaleSweep(sweep))

	// Enqueue the sweep on its interval.
	go runSweepTicker(logger)

	// Start async worker with retry logic
	go func() {
		log.Println("[EngineWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[EngineWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[EngineWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleCalendarSync(syncSvc *calendar.SyncService) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p CalendarSyncPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[CalendarSync] invalid payload: %v", err)
			return err
		}
		retried, _ := asynq.GetRetryCount(ctx)
		return syncSvc.Sync(ctx, p.BookingID, p.Action, retried+1)
	}
}

func handleStaleSweep(sweep *booking.StalenessSweep) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		return sweep.Run(ctx)
	}
}

func runSweepTicker(logger *zap.Logger) {
	interval := time.Duration(config.AppConfig.StaleSweepIntervalMin) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	client := asynq.NewClient(redisOpts())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		// MaxRetry 0: a failed pass waits for the next tick instead of
		// piling retries on top of the schedule.
		if _, err := client.Enqueue(asynq.NewTask(TypeStaleSweep, nil), asynq.MaxRetry(0)); err != nil {
			logger.Error("failed to enqueue staleness sweep", zap.Error(err))
		}
	}
}
