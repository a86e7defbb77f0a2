package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tradepilot/internal/automation/strategy"
)

// Record is the latest plan produced by one strategy action.
type Record struct {
	PipelineID string        `json:"pipeline_id"`
	ActionID   string        `json:"action_id"`
	Plan       strategy.Plan `json:"plan"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	List(ctx context.Context, pipelineID string) ([]Record, error)
	Delete(ctx context.Context, pipelineID string) error
}

func key(pipelineID string) string {
	return "pipeline:plans:" + pipelineID
}

// RedisStore keeps one hash per pipeline, field per action, expiring ttl after the last write.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	k := key(rec.PipelineID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, rec.ActionID, data)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) List(ctx context.Context, pipelineID string) ([]Record, error) {
	fields, err := s.client.HGetAll(ctx, key(pipelineID)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(fields))
	for field, raw := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", field, err)
		}
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

func (s *RedisStore) Delete(ctx context.Context, pipelineID string) error {
	return s.client.Del(ctx, key(pipelineID)).Err()
}

// MemoryStore is used when no Redis is configured.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	plans map[string]map[string]Record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, plans: make(map[string]map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plans[rec.PipelineID] == nil {
		s.plans[rec.PipelineID] = make(map[string]Record)
	}
	s.plans[rec.PipelineID][rec.ActionID] = rec
	return nil
}

func (s *MemoryStore) List(_ context.Context, pipelineID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []Record
	cutoff := s.now().Add(-s.ttl)
	for actionID, rec := range s.plans[pipelineID] {
		if s.ttl > 0 && rec.CreatedAt.Before(cutoff) {
			delete(s.plans[pipelineID], actionID)
			continue
		}
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

func (s *MemoryStore) Delete(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	delete(s.plans, pipelineID)
	s.mu.Unlock()
	return nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ActionID < records[j].ActionID
	})
}
