package repository

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-jackson"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultActivityKey  = "jackson:auth:activity"
	DefaultActivitySize = 500
)

// RedisActivityLog keeps the newest auth events in a capped Redis list.
type RedisActivityLog struct {
	rdb  *redis.Client
	key  string
	size int64
}

var (
	_ jackson.ActivitySink   = (*RedisActivityLog)(nil)
	_ jackson.ActivityReader = (*RedisActivityLog)(nil)
)

// NewRedisActivityLog connects to a redis:// URL.
func NewRedisActivityLog(url string) (*RedisActivityLog, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisActivityLogWithClient(redis.NewClient(opt), DefaultActivityKey, DefaultActivitySize), nil
}

func NewRedisActivityLogWithClient(rdb *redis.Client, key string, size int64) *RedisActivityLog {
	if key == "" {
		key = DefaultActivityKey
	}
	if size <= 0 {
		size = DefaultActivitySize
	}
	return &RedisActivityLog{rdb: rdb, key: key, size: size}
}

func (l *RedisActivityLog) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Record implements jackson.ActivitySink.
func (l *RedisActivityLog) Record(ctx context.Context, event jackson.ActivityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, l.key, payload)
		pipe.LTrim(ctx, l.key, 0, l.size-1)
		return nil
	})
	return err
}

// Recent implements jackson.ActivityReader.
func (l *RedisActivityLog) Recent(ctx context.Context, limit int) ([]jackson.ActivityEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	items, err := l.rdb.LRange(ctx, l.key, 0, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return []jackson.ActivityEvent{}, nil
		}
		return nil, err
	}

	events := make([]jackson.ActivityEvent, 0, len(items))
	for _, item := range items {
		var event jackson.ActivityEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (l *RedisActivityLog) Close() error {
	return l.rdb.Close()
}
