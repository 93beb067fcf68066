package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Snapshot is the latest run as stored in Redis.
type Snapshot struct {
	RunID     string         `json:"run_id"`
	Method    string         `json:"method"`
	ScrapedAt time.Time      `json:"scraped_at"`
	Matches   []models.Match `json:"matches"`
}

func newSnapshot(run RunInfo, matches []models.Match) Snapshot {
	if matches == nil {
		matches = []models.Match{}
	}
	return Snapshot{RunID: run.ID, Method: run.Method, ScrapedAt: run.At.UTC(), Matches: matches}
}

// Redis keeps the latest run under one key with a TTL.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ Sink = (*Redis)(nil)

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, key: cfg.Key, ttl: cfg.TTL}, nil
}

func (r *Redis) Name() string { return "redis" }

// Write replaces the snapshot. Empty runs are stored too so readers see the run happened.
func (r *Redis) Write(ctx context.Context, run RunInfo, matches []models.Match) error {
	data, err := json.Marshal(newSnapshot(run, matches))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	slog.Info("Redis: snapshot stored", "key", r.key, "count", len(matches))
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
