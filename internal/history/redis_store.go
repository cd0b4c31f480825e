package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// RedisStore keeps each room's history in a Redis list, newest at the head.
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int
}

// NewRedisStore wraps an existing client. limit must be at least 1.
func NewRedisStore(client *redis.Client, prefix string, limit int) *RedisStore {
	if limit < 1 {
		limit = 1
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		limit:  limit,
	}
}

func (s *RedisStore) keyFor(room string) string {
	return fmt.Sprintf("%s:%s:history", s.prefix, room)
}

// Append pushes msg and trims the list in one MULTI/EXEC so readers never
// observe more than limit entries.
func (s *RedisStore) Append(ctx context.Context, room string, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := s.keyFor(room)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: append to %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Snapshot reads the newest limit entries and returns them oldest-first.
// Entries that fail to decode are skipped.
func (s *RedisStore) Snapshot(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	key := s.keyFor(room)
	raw, err := s.client.LRange(ctx, key, 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, key, err)
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, room).Msg("skipping undecodable history entry")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Limit() int {
	return s.limit
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
