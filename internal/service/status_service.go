package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"prediction-tracker/internal/entity"
)

// StatusStore keeps one PipelineStatus document per creator. It is soft
// state: entries expire after the retention window and a missing entry just
// means idle.
type StatusStore interface {
	Get(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error)
	Set(ctx context.Context, status entity.PipelineStatus) error
	All(ctx context.Context) ([]entity.PipelineStatus, error)
}

type redisStatusStore struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewStatusStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) StatusStore {
	if keyPrefix == "" {
		keyPrefix = "pipeline:status"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStatusStore{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *redisStatusStore) key(creatorID uuid.UUID) string {
	return s.keyPrefix + ":" + creatorID.String()
}

// Get returns nil with no error when no status document exists.
func (s *redisStatusStore) Get(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error) {
	payload, err := s.rdb.Get(ctx, s.key(creatorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var st entity.PipelineStatus
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func (s *redisStatusStore) Set(ctx context.Context, status entity.PipelineStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.rdb.Set(ctx, s.key(status.CreatorID), payload, s.ttl).Err()
}

// All scans every live status document. The recovery sweep uses this to find
// pipelines a crashed process left mid-phase.
func (s *redisStatusStore) All(ctx context.Context) ([]entity.PipelineStatus, error) {
	var (
		out    []entity.PipelineStatus
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.keyPrefix+":*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			payload, err := s.rdb.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between SCAN and GET
				}
				return nil, err
			}
			var st entity.PipelineStatus
			if err := json.Unmarshal([]byte(payload), &st); err != nil {
				continue
			}
			out = append(out, st)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
