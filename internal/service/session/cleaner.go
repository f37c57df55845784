package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleaner периодически удаляет сессии старше TTL.
type Cleaner struct {
	store  *Store
	logger *zap.SugaredLogger
}

func NewCleaner(store *Store, logger *zap.SugaredLogger) *Cleaner {
	return &Cleaner{store: store, logger: logger}
}

// Run крутится до отмены контекста. Проверка выполняется раз в ttl/4, но не реже раза в минуту.
func (c *Cleaner) Run(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := min(max(ttl/4, time.Second), time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.store.EvictIdle(ttl); removed > 0 {
				c.logger.Infow("Удалены неактивные сессии", "removed", removed, "ttl", ttl.String(), "left", c.store.Len())
			}
		}
	}
}
