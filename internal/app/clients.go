package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/clients/redis"
	"github.com/yungbote/lms-progress/internal/config"
	"github.com/yungbote/lms-progress/internal/data/db"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type Clients struct {
	DB    *db.Service
	Redis *goredis.Client
}

// wireClients opens the database and, when configured, Redis.
func wireClients(ctx context.Context, cfg config.Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	svc, err := db.NewService(cfg.DB, log)
	if err != nil {
		return out, fmt.Errorf("init db: %w", err)
	}
	out.DB = svc
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		out.Close()
		return out, err
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			out.Close()
			return out, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}
	return out, nil
}

func (c Clients) Gorm() *gorm.DB {
	if c.DB == nil {
		return nil
	}
	return c.DB.DB()
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
