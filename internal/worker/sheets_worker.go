package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courtclub/internal/events"
	"courtclub/internal/google"
	"courtclub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert = "upsert"
	TaskDelete = "delete"
	TaskResync = "resync"
)

// SheetsClient is the part of google.ScheduleSheet the worker drives.
type SheetsClient interface {
	UpsertReservation(ctx context.Context, res *models.Reservation) error
	DeleteReservationRow(ctx context.Context, reservationID string) error
	ReplaceAll(ctx context.Context, reservations []models.Reservation) error
}

// ReservationSource returns the current reservation set for a full resync.
type ReservationSource func() []models.Reservation

// SheetsWorker mirrors reservation changes into the schedule sheet. Tasks go
// through a redis list when redis is configured, otherwise an in-memory channel.
// Failed tasks are retried with backoff and end up in a dead letter list.
type SheetsWorker struct {
	sheets        SheetsClient
	source        ReservationSource
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	after         func(time.Duration, func())
	logger        *zerolog.Logger
}

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(sheets SheetsClient, source ReservationSource, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	retry = retry.withDefaults()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SheetsWorker{
		sheets:        sheets,
		source:        source,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
		after:         func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		logger:        logger,
	}
}

// EnqueueTask schedules a mirror job via redis or the in-memory queue.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, res *models.Reservation) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	task := models.SyncTask{Type: taskType, Reservation: res, CreatedAt: time.Now()}
	if res != nil {
		task.ReservationID = res.ID
	}
	switch taskType {
	case TaskUpsert:
		if res == nil || res.ID == "" {
			return errors.New("reservation is required")
		}
	case TaskDelete:
		if task.ReservationID == "" {
			return errors.New("reservation id is required")
		}
	case TaskResync:
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	w.push(ctx, task)
	return nil
}

// EnqueueDelete schedules removal of a row by id.
func (w *SheetsWorker) EnqueueDelete(ctx context.Context, reservationID string) error {
	return w.EnqueueTask(ctx, TaskDelete, &models.Reservation{ID: reservationID})
}

func (w *SheetsWorker) push(ctx context.Context, task models.SyncTask) {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("sheets_worker: redis push failed, fallback to memory queue")
		} else {
			return
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Error().Str("reservation_id", task.ReservationID).Str("task", task.Type).Msg("sheets_worker: in-memory queue full, task dropped")
	}
}

// HandleEvent maps domain events onto mirror tasks. Subscribe it to the bus.
func (w *SheetsWorker) HandleEvent(event *events.Event) error {
	ctx := context.Background()
	switch event.Type {
	case events.EventReservationCreated, events.EventReservationUpdated:
		var payload events.ReservationEventPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return w.EnqueueTask(ctx, TaskUpsert, &payload.Reservation)
	case events.EventReservationDeleted:
		var payload events.ReservationEventPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return w.EnqueueDelete(ctx, payload.Reservation.ID)
	default:
		return nil
	}
}

// Start launches main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets_worker: started")
	defer w.logger.Info().Msg("sheets_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.redis != nil {
			if t, ok := w.tryRedis(ctx); ok {
				w.processTask(ctx, &t)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("sheets_worker: redis BRPOP error")
		time.Sleep(w.pollInterval)
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sheets_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	if err := w.handleSheetTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.logger.Debug().Str("reservation_id", task.ReservationID).Str("task", task.Type).Msg("sheets_worker: task done")
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, task *models.SyncTask) error {
	switch task.Type {
	case TaskUpsert:
		if task.Reservation == nil {
			return errors.New("reservation payload missing")
		}
		return w.sheets.UpsertReservation(ctx, task.Reservation)
	case TaskDelete:
		if task.ReservationID == "" {
			return errors.New("reservation id missing")
		}
		err := w.sheets.DeleteReservationRow(ctx, task.ReservationID)
		if errors.Is(err, google.ErrRowNotFound) {
			return nil
		}
		return err
	case TaskResync:
		if w.source == nil {
			return errors.New("no reservation source for resync")
		}
		return w.sheets.ReplaceAll(ctx, w.source())
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()
	if task.Attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Str("reservation_id", task.ReservationID).Str("task", task.Type).
			Int("attempt", task.Attempt).Msg("sheets_worker: task failed permanently")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).Str("reservation_id", task.ReservationID).Dur("retry_in", delay).Msg("sheets_worker: task will be retried")
	retry := *task
	w.after(delay, func() { w.push(context.Background(), retry) })
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Str("reservation_id", task.ReservationID).Msg("sheets_worker: deadletter push")
	}
}
