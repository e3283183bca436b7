package session

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hireloop/interview-gateway/pkg/core"
)

// RedisStore keeps session state in Redis. The chunk buffer is a list under
// session:{id}:chunks with a sliding TTL; attach metadata is a hash under
// session:{id}:meta with a longer fixed TTL.
type RedisStore struct {
	client   *redis.Client
	chunkTTL time.Duration
	metaTTL  time.Duration
}

// NewRedis builds a store from a Redis URL (redis://host:port/db).
func NewRedis(url string, chunkTTL, metaTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, core.NewCollaboratorError("redis", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), chunkTTL, metaTTL), nil
}

// NewRedisWithClient wraps an existing client, used by tests and callers
// that manage the connection themselves.
func NewRedisWithClient(client *redis.Client, chunkTTL, metaTTL time.Duration) *RedisStore {
	if chunkTTL <= 0 {
		chunkTTL = DefaultChunkTTL
	}
	if metaTTL <= 0 {
		metaTTL = DefaultMetaTTL
	}
	return &RedisStore{client: client, chunkTTL: chunkTTL, metaTTL: metaTTL}
}

// Ping verifies connectivity, used by readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.NewCollaboratorError("redis", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func chunkKey(sessionID string) string { return "session:" + sessionID + ":chunks" }
func metaKey(sessionID string) string  { return "session:" + sessionID + ":meta" }

func (s *RedisStore) Create(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, chunkKey(sessionID)).Err(); err != nil {
		return core.NewCollaboratorError("redis", err)
	}
	return nil
}

func (s *RedisStore) AppendChunk(ctx context.Context, sessionID string, chunk []byte) error {
	key := chunkKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, chunk)
	pipe.Expire(ctx, key, s.chunkTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewCollaboratorError("redis", err)
	}
	return nil
}

func (s *RedisStore) Chunks(ctx context.Context, sessionID string) ([][]byte, error) {
	raw, err := s.client.LRange(ctx, chunkKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, core.NewCollaboratorError("redis", err)
	}
	chunks := make([][]byte, len(raw))
	for i, r := range raw {
		chunks[i] = []byte(r)
	}
	return chunks, nil
}

func (s *RedisStore) SetMeta(ctx context.Context, sessionID string, meta Meta) error {
	key := metaKey(sessionID)
	fields := map[string]any{
		"interview_id": meta.InterviewID,
		"response_id":  meta.ResponseID,
		"token":        meta.Token,
		"conn_id":      meta.ConnID,
		"created_at":   strconv.FormatInt(meta.CreatedAt.Unix(), 10),
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.metaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewCollaboratorError("redis", err)
	}
	return nil
}

func (s *RedisStore) Meta(ctx context.Context, sessionID string) (Meta, bool, error) {
	raw, err := s.client.HGetAll(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return Meta{}, false, core.NewCollaboratorError("redis", err)
	}
	if len(raw) == 0 {
		return Meta{}, false, nil
	}
	meta := Meta{
		InterviewID: raw["interview_id"],
		ResponseID:  raw["response_id"],
		Token:       raw["token"],
		ConnID:      raw["conn_id"],
	}
	if ts, err := strconv.ParseInt(raw["created_at"], 10, 64); err == nil {
		meta.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return meta, true, nil
}

func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, metaKey(sessionID), chunkKey(sessionID)).Err(); err != nil {
		return core.NewCollaboratorError("redis", err)
	}
	return nil
}
