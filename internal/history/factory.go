package history

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewStore creates a redis-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, cfg RedisConfig, logger *logrus.Logger) (Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		logger.Warn("REDIS_URL not set, session state will not survive restarts")
		return NewInMemoryStore(cfg.MaxEntries, cfg.HistoryTTL), nil
	}
	return NewRedisStore(ctx, cfg, logger)
}
