package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rs/zerolog"
)

// RedisStore keeps snapshots in Redis, keyed per user, for deployments
// where candidates roam between shared machines (labs, kiosks): an
// attempt started on one seat can be resumed from another.
type RedisStore struct {
	rdb    *redis.Client
	userID string
	log    zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, userID string, log zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{
		rdb:    rdb,
		userID: userID,
		log:    log.With().Str("component", "snapshot_redis").Logger(),
	}, nil
}

func (s *RedisStore) key(examID uuid.UUID) string {
	return config.StorageKey.UserAttemptSnapshot(s.userID, examID.String())
}

// Save writes the snapshot. Timed attempts expire from Redis shortly
// after the attempt itself expires; untimed ones are kept for a day.
func (s *RedisStore) Save(ctx context.Context, examID uuid.UUID, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	stamped := *snap
	stamped.ExamID = examID

	raw, err := json.Marshal(&stamped)
	if err != nil {
		return err
	}

	ttl := 24 * time.Hour
	if stamped.ExpiresAt != nil {
		if until := time.Until(*stamped.ExpiresAt) + time.Hour; until > 0 {
			ttl = until
		}
	}
	return s.rdb.Set(ctx, s.key(examID), raw, ttl).Err()
}

// Load reads the snapshot. redis.Nil and corrupt values are misses.
func (s *RedisStore) Load(ctx context.Context, examID uuid.UUID) (*model.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key(examID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// A dead Redis should not block the session: the server resume
		// path still works. Treat as a miss, but log it.
		s.log.Warn().Err(err).Msg("Redis read failed, treating as miss")
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Discarding corrupt snapshot")
		_ = s.rdb.Del(ctx, s.key(examID)).Err()
		return nil, nil
	}
	return scoped(&snap, examID), nil
}

// Clear removes the entry.
func (s *RedisStore) Clear(ctx context.Context, examID uuid.UUID) error {
	return s.rdb.Del(ctx, s.key(examID)).Err()
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
