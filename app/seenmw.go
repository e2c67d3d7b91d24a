package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

// TouchLastSeen updates users.last_seen_at at most once per throttle window.
func TouchLastSeen(users SeenToucher, rdb *redis.Client, throttle time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(UserIDKey)
		if uid == "" {
			c.Next()
			return
		}
		key := "user:lastseen:" + uid
		if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); ok {
			if err := users.TouchUserSeen(c, uid); err != nil {
				log.Warn("touch last seen", zap.String("user_id", uid), zap.Error(err))
			}
		}
		c.Next()
	}
}
