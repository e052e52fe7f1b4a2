package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/pacer/internal/infra/proxy"
)

// scoreTTL bounds how stale a persisted pool state may be before a fresh
// session starts from clean scores instead.
const scoreTTL = 24 * time.Hour

// ScoreStore persists proxy health snapshots so a restarted session does not
// rediscover dead proxies the hard way.
type ScoreStore struct {
	client    *Client
	namespace string
}

// persistedEntry is the stored shape of one proxy's health.
type persistedEntry struct {
	Endpoint string  `json:"endpoint"`
	Score    float64 `json:"score"`
	Failures int     `json:"failures"`
	Active   bool    `json:"active"`
}

// NewScoreStore creates a store scoped to one session namespace.
func NewScoreStore(client *Client, namespace string) *ScoreStore {
	if namespace == "" {
		namespace = "default"
	}
	return &ScoreStore{client: client, namespace: namespace}
}

func (s *ScoreStore) key() string {
	return fmt.Sprintf("proxy_scores:%s", s.namespace)
}

// Save writes the pool's current snapshots, replacing any previous state.
func (s *ScoreStore) Save(ctx context.Context, snaps []proxy.Snapshot) error {
	entries := make([]persistedEntry, 0, len(snaps))
	for _, snap := range snaps {
		entries = append(entries, persistedEntry{
			Endpoint: snap.Endpoint,
			Score:    snap.Score,
			Failures: snap.ConsecutiveFailures,
			Active:   snap.Active,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal proxy scores: %w", err)
	}

	if err := s.client.rdb.Set(ctx, s.key(), data, scoreTTL).Err(); err != nil {
		return fmt.Errorf("failed to persist proxy scores: %w", err)
	}
	return nil
}

// Load returns the persisted snapshots, or nil when nothing (or nothing
// fresh) is stored.
func (s *ScoreStore) Load(ctx context.Context) ([]proxy.Snapshot, error) {
	data, err := s.client.rdb.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load proxy scores: %w", err)
	}

	var entries []persistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proxy scores: %w", err)
	}

	snaps := make([]proxy.Snapshot, 0, len(entries))
	for _, e := range entries {
		snaps = append(snaps, proxy.Snapshot{
			ID:                  e.Endpoint, // pool normalizes on restore
			Endpoint:            e.Endpoint,
			Score:               e.Score,
			ConsecutiveFailures: e.Failures,
			Active:              e.Active,
		})
	}
	return snaps, nil
}

// Clear drops the persisted state for this namespace.
func (s *ScoreStore) Clear(ctx context.Context) error {
	return s.client.rdb.Del(ctx, s.key()).Err()
}
