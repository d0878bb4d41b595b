package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resumeforge/resumeforge/pkg/logging"
)

const remoteKeyPrefix = "resumeforge:configs"

// RemoteMirror is an optional Redis-backed write-through mirror of the
// resolved-configuration partition, so a fleet of instances can share
// expensive configuration resolution. Lookups are best-effort: a mirror
// failure is logged and treated as a miss, never surfaced to generation.
type RemoteMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRemoteMirror creates a mirror backed by the given Redis client
func NewRemoteMirror(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RemoteMirror {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &RemoteMirror{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get fetches the JSON payload for a configuration key. The second return
// is false on miss or any mirror failure.
func (m *RemoteMirror) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := m.client.Get(ctx, m.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			m.logger.Warn("Config mirror lookup failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return data, true
}

// Put stores a JSON-serializable value under the configuration key
func (m *RemoteMirror) Put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize mirrored config: %w", err)
	}

	if err := m.client.Set(ctx, m.redisKey(key), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mirror config: %w", err)
	}

	return nil
}

// Ping verifies the mirror connection
func (m *RemoteMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RemoteMirror) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", remoteKeyPrefix, key)
}
