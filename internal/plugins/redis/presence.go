package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
)

const (
	onlineKey    = "presence:online"
	statusPrefix = "presence:status:"
)

var _ contracts.PresenceStore = (*RedisPresenceStore)(nil)

// RedisPresenceStore keeps presence in a ZSET of online users scored by last
// heartbeat, plus one expiring key per user holding the announced status.
type RedisPresenceStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisPresenceStore(rdb redis.Cmdable) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
		now: time.Now,
	}
}

// Touch adds/updates the user in the online ZSet with the current timestamp.
func (p *RedisPresenceStore) Touch(ctx context.Context, userID string, ttl time.Duration) error {
	now := p.now()
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, onlineKey, redis.Z{
			Score:  float64(now.Unix()),
			Member: userID,
		})
		// Drop members that stopped heart-beating without a clean disconnect.
		pipe.ZRemRangeByScore(ctx, onlineKey, "-inf", strconv.FormatInt(now.Add(-ttl).Unix(), 10))
		// Refresh the status marker so it lives as long as the connection.
		pipe.Expire(ctx, statusPrefix+userID, ttl)
		return nil
	})
	return err
}

func (p *RedisPresenceStore) SetStatus(ctx context.Context, userID string, status domain.UserStatus, ttl time.Duration) error {
	return p.rdb.Set(ctx, statusPrefix+userID, string(status), ttl).Err()
}

func (p *RedisPresenceStore) Clear(ctx context.Context, userID string) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, onlineKey, userID)
		pipe.Del(ctx, statusPrefix+userID)
		return nil
	})
	return err
}
