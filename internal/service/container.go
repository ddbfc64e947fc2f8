package service

import (
	"context"
	"time"

	"tractor-service/internal/config"
	"tractor-service/internal/service/auth"
	"tractor-service/internal/service/game"
	"tractor-service/internal/service/room"
	"tractor-service/internal/service/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth *auth.Service
	User *user.Service
	Room *room.Service
	Game *game.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	gameCfg := game.RuntimeConfig{
		StartLevel:   game.Rank(config.GlobalConfig.Game.StartLevel),
		WinScore:     config.GlobalConfig.Game.WinScore,
		DealInterval: time.Duration(config.GlobalConfig.Game.DealIntervalMs) * time.Millisecond,
		TurnSeconds:  config.GlobalConfig.Game.TurnSeconds,
	}
	return &Container{
		Auth: auth.NewService(db),
		User: user.NewService(db),
		Room: room.NewService(db, rdb),
		Game: game.NewService(db, gameCfg),
	}
}

func (c *Container) Start(ctx context.Context) error {
	return c.Room.Start(ctx)
}
