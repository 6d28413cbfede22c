package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "outbox:queue"
	defaultDeadLetterKey = "outbox:deadletter"
)

// OutboxStore is the persistence the dispatcher drives.
type OutboxStore interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	ClaimOutboxEvent(ctx context.Context, id int64) (bool, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	ResetStaleOutboxEvents(ctx context.Context) (int64, error)
}

type DispatcherConfig struct {
	Retry         RetryPolicy
	PollInterval  time.Duration
	BatchSize     int
	QueueKey      string
	DeadLetterKey string
}

// Dispatcher delivers outbox events to the event bus. Rows arrive through
// the in-memory queue, a redis list or polling; the claim in the store makes
// sure each delivery attempt runs once.
type Dispatcher struct {
	store        OutboxStore
	bus          *events.EventBus
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.OutboxEvent
	queueKey     string
	deadKey      string
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

// NewDispatcher builds a dispatcher with sane defaults. redisClient may be nil.
func NewDispatcher(store OutboxStore, bus *events.EventBus, redisClient *redis.Client, cfg DispatcherConfig, logger *zerolog.Logger) *Dispatcher {
	retry := cfg.Retry.withDefaults()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.QueueKey == "" {
		cfg.QueueKey = defaultQueueKey
	}
	if cfg.DeadLetterKey == "" {
		cfg.DeadLetterKey = defaultDeadLetterKey
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "outbox-dispatcher").Logger()

	return &Dispatcher{
		store:        store,
		bus:          bus,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.OutboxEvent, models.OutboxQueueSize),
		queueKey:     cfg.QueueKey,
		deadKey:      cfg.DeadLetterKey,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		logger:       &l,
	}
}

// Enqueue schedules committed outbox rows for delivery. Rows that fit in
// neither queue are still picked up by polling.
func (d *Dispatcher) Enqueue(ctx context.Context, rows []models.OutboxEvent) {
	for _, row := range rows {
		if d.redis != nil {
			if err := d.pushRedis(ctx, d.queueKey, row); err != nil {
				d.logger.Warn().Err(err).Str("event_id", row.EventID).Msg("redis push failed, falling back to memory queue")
			} else {
				continue
			}
		}

		select {
		case d.queue <- row:
		default:
			d.logger.Warn().Int64("outbox_id", row.ID).Msg("in-memory queue full, event left to polling")
		}
	}
}

// Start runs the delivery loop until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Msg("outbox dispatcher started")
	defer d.logger.Info().Msg("outbox dispatcher stopped")

	if n, err := d.store.ResetStaleOutboxEvents(ctx); err != nil {
		d.logger.Error().Err(err).Msg("failed to reset stale outbox events")
	} else if n > 0 {
		d.logger.Info().Int64("count", n).Msg("re-queued events left in processing")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if row, ok := d.tryLocalQueue(); ok {
			d.process(ctx, &row)
			continue
		}

		if row, ok := d.tryRedis(ctx); ok {
			d.process(ctx, &row)
			continue
		}

		n, err := d.ProcessPending(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to fetch pending outbox events")
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pollInterval):
			}
		}
	}
}

// ProcessPending delivers one batch of due events and returns its size.
func (d *Dispatcher) ProcessPending(ctx context.Context) (int, error) {
	rows, err := d.store.GetPendingOutboxEvents(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range rows {
		d.process(ctx, &rows[i])
	}
	return len(rows), nil
}

func (d *Dispatcher) tryLocalQueue() (models.OutboxEvent, bool) {
	select {
	case row := <-d.queue:
		return row, true
	default:
		return models.OutboxEvent{}, false
	}
}

func (d *Dispatcher) tryRedis(ctx context.Context) (models.OutboxEvent, bool) {
	if d.redis == nil {
		return models.OutboxEvent{}, false
	}
	res, err := d.redis.BRPop(ctx, time.Second, d.queueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.OutboxEvent{}, false
		}
		d.logger.Warn().Err(err).Msg("redis BRPOP failed")
		return models.OutboxEvent{}, false
	}
	if len(res) != 2 {
		return models.OutboxEvent{}, false
	}
	var row models.OutboxEvent
	if err := json.Unmarshal([]byte(res[1]), &row); err != nil {
		d.logger.Error().Err(err).Msg("failed to decode queued outbox event")
		return models.OutboxEvent{}, false
	}
	return row, true
}

func (d *Dispatcher) process(ctx context.Context, row *models.OutboxEvent) {
	claimed, err := d.store.ClaimOutboxEvent(ctx, row.ID)
	if err != nil {
		d.logger.Error().Err(err).Int64("outbox_id", row.ID).Msg("failed to claim outbox event")
		return
	}
	if !claimed {
		return
	}

	if err := d.bus.PublishSync(ctx, events.FromOutbox(row)); err != nil {
		d.retryOrFail(ctx, row, err)
		return
	}

	if err := d.store.UpdateOutboxStatus(ctx, row.ID, models.OutboxCompleted, "", nil); err != nil {
		d.logger.Error().Err(err).Int64("outbox_id", row.ID).Msg("failed to mark outbox event completed")
		return
	}
	metrics.IncOutbox(models.OutboxCompleted)
}

func (d *Dispatcher) retryOrFail(ctx context.Context, row *models.OutboxEvent, cause error) {
	attempt := row.RetryCount + 1
	log := d.logger.With().Int64("outbox_id", row.ID).Str("event", row.EventType).Int("attempt", attempt).Logger()

	if d.retryPolicy.Exhausted(attempt) {
		if err := d.store.UpdateOutboxStatus(ctx, row.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
			log.Error().Err(err).Msg("failed to mark outbox event failed")
		}
		log.Error().Err(cause).Msg("outbox event failed permanently")
		metrics.IncOutbox(models.OutboxFailed)
		d.pushDeadLetter(ctx, row, cause)
		return
	}

	next := d.retryPolicy.NextRetryAt(time.Now(), attempt)
	if err := d.store.UpdateOutboxStatus(ctx, row.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		log.Error().Err(err).Msg("failed to schedule outbox retry")
	}
	log.Warn().Err(cause).Time("next_retry_at", next).Msg("outbox delivery failed, will retry")
	metrics.IncOutbox(models.OutboxRetry)
}

func (d *Dispatcher) pushRedis(ctx context.Context, key string, row models.OutboxEvent) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode outbox event: %w", err)
	}
	return d.redis.LPush(ctx, key, data).Err()
}

func (d *Dispatcher) pushDeadLetter(ctx context.Context, row *models.OutboxEvent, cause error) {
	if d.redis == nil {
		return
	}
	dead := *row
	msg := cause.Error()
	dead.Status = models.OutboxFailed
	dead.LastError = &msg
	if err := d.pushRedis(ctx, d.deadKey, dead); err != nil {
		d.logger.Error().Err(err).Int64("outbox_id", row.ID).Msg("dead-letter push failed")
	}
}
