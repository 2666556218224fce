package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"care-hub/backend/config"
	"care-hub/backend/pkg/database"
	applogger "care-hub/backend/pkg/logger"
	"care-hub/backend/pkg/redis"
)

// runtimeEnv 子命令共享的配置与日志
type runtimeEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

// loadEnv 读取 .env 与配置文件；--config 为空时按默认路径查找
func loadEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &runtimeEnv{cfg: cfg, logger: logger}, nil
}

func (e *runtimeEnv) openDB() (*gorm.DB, func(), error) {
	db, err := database.NewDB(&e.cfg.Database, e.cfg.Log.Level, e.logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

func (e *runtimeEnv) openRedis() (*redis.Client, error) {
	return redis.NewClient(&e.cfg.Redis, e.logger)
}

func (e *runtimeEnv) close() {
	_ = e.logger.Sync()
}
