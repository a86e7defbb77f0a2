package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradepilot/pkg/flow"
)

// AsynqBackend registers periodic PIPELINE_RUN tasks in Redis and runs them on
// an asynq worker, so several server instances can share one schedule.
type AsynqBackend struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	// asynq.Scheduler keeps entries in memory, so Register pings the broker itself
	rdb redis.UniversalClient
	mux       *asynq.ServeMux
	fire      FireFunc
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]asynqEntry
}

type asynqEntry struct {
	registered time.Time
	interval   time.Duration
}

func NewAsynqBackend(redisOpt asynq.RedisConnOpt, concurrency int, fire FireFunc, logger *zap.Logger) *AsynqBackend {
	logger = logger.Named("asynq")
	b := &AsynqBackend{
		scheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logger.Sugar()}),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: concurrency,
			Logger:      logger.Sugar(),
		}),
		mux:     asynq.NewServeMux(),
		fire:    fire,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]asynqEntry),
	}
	if rdb, ok := redisOpt.MakeRedisClient().(redis.UniversalClient); ok {
		b.rdb = rdb
	}
	b.mux.HandleFunc(flow.PIPELINE_RUN, b.handleRun)
	return b
}

const pingTimeout = 3 * time.Second

func (b *AsynqBackend) ping() error {
	if b.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("asynq broker unavailable: %w", err)
	}
	return nil
}

func (b *AsynqBackend) Register(interval time.Duration, pipelineID string) (string, error) {
	if err := b.ping(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(flow.RunPayload{PipelineID: pipelineID})
	if err != nil {
		return "", err
	}
	// no retries: the next interval is the retry
	task := asynq.NewTask(flow.PIPELINE_RUN, payload, asynq.MaxRetry(0), asynq.Unique(interval))
	entryID, err := b.scheduler.Register(fmt.Sprintf("@every %s", interval), task)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.entries[entryID] = asynqEntry{registered: b.now(), interval: interval}
	b.mu.Unlock()
	return entryID, nil
}

func (b *AsynqBackend) Unregister(entryID string) error {
	if err := b.scheduler.Unregister(entryID); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.entries, entryID)
	b.mu.Unlock()
	return nil
}

func (b *AsynqBackend) Next(entryID string) (time.Time, bool) {
	b.mu.Lock()
	e, ok := b.entries[entryID]
	b.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	elapsed := b.now().Sub(e.registered)
	ticks := elapsed/e.interval + 1
	return e.registered.Add(ticks * e.interval), true
}

func (b *AsynqBackend) Start() error {
	if err := b.scheduler.Start(); err != nil {
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	if err := b.server.Start(b.mux); err != nil {
		b.scheduler.Shutdown()
		return fmt.Errorf("start asynq worker: %w", err)
	}
	return nil
}

func (b *AsynqBackend) Stop() {
	b.scheduler.Shutdown()
	b.server.Shutdown()
	if b.rdb != nil {
		b.rdb.Close()
	}
}

func (b *AsynqBackend) handleRun(ctx context.Context, t *asynq.Task) error {
	var payload flow.RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// malformed payloads are never retried
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	b.fire(ctx, payload.PipelineID)
	return nil
}
