package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const activityKey = "room:activity"

// ActivityCache persists last-activity timestamps for rooms as a Redis
// sorted set scored by unix time, so the reaper can range-scan for
// rooms gone quiet.
type ActivityCache interface {
	Flush(ctx context.Context, marks map[string]time.Time) error
	// StaleRooms returns ids of rooms whose last activity is at or
	// before the cutoff.
	StaleRooms(ctx context.Context, cutoff time.Time) ([]string, error)
	Remove(ctx context.Context, roomIDs ...string) error
}

type activityCache struct {
	client *redis.Client
}

func NewActivityCache(client *redis.Client) ActivityCache {
	return &activityCache{client: client}
}

func (c *activityCache) Flush(ctx context.Context, marks map[string]time.Time) error {
	if len(marks) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(marks))
	for roomID, at := range marks {
		members = append(members, redis.Z{
			Score:  float64(at.Unix()),
			Member: roomID,
		})
	}
	return c.client.ZAdd(ctx, activityKey, members...).Err()
}

func (c *activityCache) StaleRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	return c.client.ZRangeByScore(ctx, activityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
}

func (c *activityCache) Remove(ctx context.Context, roomIDs ...string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(roomIDs))
	for i, id := range roomIDs {
		members[i] = id
	}
	return c.client.ZRem(ctx, activityKey, members...).Err()
}
