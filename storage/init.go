package storage

import (
	"SafeWalk/config"
	"SafeWalk/storage/database"
	"SafeWalk/storage/mq"
	"SafeWalk/storage/redis"
)

// Init 统一初始化存储层，STORE_BACKEND=memory 时跳过数据库
func Init() error {
	if config.Cfg.StoreBackend == "postgres" {
		if err := database.Init(); err != nil {
			return err
		}
	}

	if err := redis.Init(); err != nil {
		return err
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return nil
}
