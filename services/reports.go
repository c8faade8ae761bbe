package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunKind names which engines a run executed.
type RunKind string

const (
	RunDeduplication RunKind = "deduplication"
	RunScoring       RunKind = "scoring"
	RunFull          RunKind = "deduplication_and_scoring"
)

// RunReport records one completed batch run.
type RunReport struct {
	ID            string       `json:"id"`
	Kind          RunKind      `json:"kind"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Deduplication *DedupResult `json:"deduplication,omitempty"`
	Scoring       *ScoreResult `json:"scoring,omitempty"`
}

// ReportCache keeps the most recent RunReport.
type ReportCache interface {
	Save(ctx context.Context, r RunReport) error
	// Last returns the latest report; ok is false when none was saved yet.
	Last(ctx context.Context) (r RunReport, ok bool, err error)
}

// MemoryReportCache holds the last report in process memory.
type MemoryReportCache struct {
	mu   sync.RWMutex
	last *RunReport
}

func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{}
}

func (c *MemoryReportCache) Save(_ context.Context, r RunReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &r
	return nil
}

func (c *MemoryReportCache) Last(_ context.Context) (RunReport, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return RunReport{}, false, nil
	}
	return *c.last, true, nil
}

const lastReportKey = "yacht-platform:last-run"

// RedisReportCache stores the last report as JSON in Redis.
type RedisReportCache struct {
	rdb *redis.Client
}

func NewRedisReportCache(rdb *redis.Client) *RedisReportCache {
	return &RedisReportCache{rdb: rdb}
}

func (c *RedisReportCache) Save(ctx context.Context, r RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("report cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, lastReportKey, data, 0).Err(); err != nil {
		return fmt.Errorf("report cache: save: %w", err)
	}
	return nil
}

func (c *RedisReportCache) Last(ctx context.Context) (RunReport, bool, error) {
	data, err := c.rdb.Get(ctx, lastReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunReport{}, false, nil
	}
	if err != nil {
		return RunReport{}, false, fmt.Errorf("report cache: load: %w", err)
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return RunReport{}, false, fmt.Errorf("report cache: decode: %w", err)
	}
	return r, true, nil
}
