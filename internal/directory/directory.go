// Package directory publishes realm occupancy for the login front end.
// Realms write their population ratio and session counts under well-known
// keys; the login service reads them to pick and label realms. Entries carry
// a TTL so a dead realm ages out of the list instead of advertising stale
// numbers.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// entryTTL bounds how long a realm's numbers survive without a refresh.
const entryTTL = 15 * time.Minute

// Redis publishes occupancy to a shared redis instance.
type Redis struct {
	rdb   *redis.Client
	realm uint32
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, addr, password string, db int, realm uint32) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Redis{rdb: rdb, realm: realm}, nil
}

func (d *Redis) Close() error {
	return d.rdb.Close()
}

func (d *Redis) populationKey() string {
	return fmt.Sprintf("realm:%d:population", d.realm)
}

func (d *Redis) sessionsKey() string {
	return fmt.Sprintf("realm:%d:sessions", d.realm)
}

// PublishPopulation writes the realm's population ratio.
func (d *Redis) PublishPopulation(ctx context.Context, ratio float64) error {
	value := strconv.FormatFloat(ratio, 'f', 4, 64)
	if err := d.rdb.Set(ctx, d.populationKey(), value, entryTTL).Err(); err != nil {
		return fmt.Errorf("publish population: %w", err)
	}
	return nil
}

// PublishCounts writes the realm's active and queued session counts.
func (d *Redis) PublishCounts(ctx context.Context, active, queued int) error {
	key := d.sessionsKey()
	pipe := d.rdb.Pipeline()
	pipe.HSet(ctx, key, "active", active, "queued", queued)
	pipe.Expire(ctx, key, entryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish session counts: %w", err)
	}
	return nil
}

// Memory is the standalone fallback: the same surface backed by process
// memory, for realms running without a shared directory.
type Memory struct {
	mu     sync.RWMutex
	ratio  float64
	active int
	queued int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (d *Memory) PublishPopulation(ctx context.Context, ratio float64) error {
	d.mu.Lock()
	d.ratio = ratio
	d.mu.Unlock()
	return nil
}

func (d *Memory) PublishCounts(ctx context.Context, active, queued int) error {
	d.mu.Lock()
	d.active = active
	d.queued = queued
	d.mu.Unlock()
	return nil
}

// Snapshot reads back the last published values.
func (d *Memory) Snapshot() (ratio float64, active, queued int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ratio, d.active, d.queued
}
