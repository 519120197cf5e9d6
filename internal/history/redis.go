package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps session state in Redis. Every session's history lives in
// its own list key, so conversations stay isolated from each other.
type RedisStore struct {
	rdb        *redis.Client
	logger     *logrus.Logger
	maxEntries int
	historyTTL time.Duration
}

type RedisConfig struct {
	URL        string
	Password   string
	MaxEntries int
	HistoryTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100
	}
	historyTTL := cfg.HistoryTTL
	if historyTTL <= 0 {
		historyTTL = 7 * 24 * time.Hour
	}

	logger.Info("connected to redis session store")
	return &RedisStore{
		rdb:        rdb,
		logger:     logger,
		maxEntries: maxEntries,
		historyTTL: historyTTL,
	}, nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

func valueKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}

func (s *RedisStore) History(ctx context.Context, sessionID string, max int) ([]Turn, error) {
	if max <= 0 {
		max = 20
	}

	items, err := s.rdb.LRange(ctx, historyKey(sessionID), 0, int64(max-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session history: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err,
			}).Warn("skipping unparseable history entry")
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := historyKey(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.maxEntries-1))
	pipe.Expire(ctx, key, s.historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session history: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session history: %w", err)
	}
	return nil
}

func (s *RedisStore) SetValue(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal session value: %w", err)
	}
	if err := s.rdb.Set(ctx, valueKey(sessionID, key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session value: %w", err)
	}
	return nil
}

func (s *RedisStore) GetValue(ctx context.Context, sessionID, key string, dest any) (bool, error) {
	raw, err := s.rdb.Get(ctx, valueKey(sessionID, key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get session value: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode session value: %w", err)
	}
	return true, nil
}

func (s *RedisStore) DeleteValue(ctx context.Context, sessionID, key string) error {
	if err := s.rdb.Del(ctx, valueKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("delete session value: %w", err)
	}
	return nil
}

func (s *RedisStore) SetKey(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) GetKey(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get key %s: %w", key, err)
	}
	return raw, true, nil
}

func (s *RedisStore) DeleteKey(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
