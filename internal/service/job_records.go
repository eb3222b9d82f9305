package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soundforge/studio/internal/model"
)

var ErrJobNotFound = errors.New("job not found")

// JobRecords keeps the last known snapshot of each job, so status can be
// answered after the tracker has let go of it.
type JobRecords interface {
	Save(ctx context.Context, job model.JobSnapshot) error
	Get(ctx context.Context, jobID string) (model.JobSnapshot, error)
}

// RedisJobRecords stores snapshots as JSON under job:<id> with a TTL.
type RedisJobRecords struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisJobRecords(redisClient *redis.Client, ttl time.Duration) *RedisJobRecords {
	return &RedisJobRecords{redis: redisClient, ttl: ttl}
}

func (r *RedisJobRecords) Save(ctx context.Context, job model.JobSnapshot) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, r.ttl).Err()
}

func (r *RedisJobRecords) Get(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	data, err := r.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.JobSnapshot{}, ErrJobNotFound
		}
		return model.JobSnapshot{}, err
	}

	var job model.JobSnapshot
	if err := json.Unmarshal(data, &job); err != nil {
		return model.JobSnapshot{}, err
	}
	return job, nil
}

type memoryRecord struct {
	job     model.JobSnapshot
	expires time.Time
}

// MemoryJobRecords is the in-process JobRecords. Expired records are
// dropped lazily on Save.
type MemoryJobRecords struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]memoryRecord
}

func NewMemoryJobRecords(ttl time.Duration) *MemoryJobRecords {
	return &MemoryJobRecords{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]memoryRecord),
	}
}

func (m *MemoryJobRecords) Save(ctx context.Context, job model.JobSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, rec := range m.records {
		if m.ttl > 0 && now.After(rec.expires) {
			delete(m.records, id)
		}
	}
	m.records[job.ID] = memoryRecord{job: job, expires: now.Add(m.ttl)}
	return nil
}

func (m *MemoryJobRecords) Get(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if !ok || (m.ttl > 0 && m.now().After(rec.expires)) {
		return model.JobSnapshot{}, ErrJobNotFound
	}
	return rec.job, nil
}
