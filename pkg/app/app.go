// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hashvault/pkg/hasher"
	"hashvault/pkg/lock"
	"hashvault/pkg/service"
	"hashvault/pkg/store"
	"hashvault/pkg/store/cache"
	"hashvault/pkg/store/queued"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务
type App struct {
	DB      *store.DB
	Store   store.Store
	Queue   *lock.Queue // 开了写队列才非 nil
	Service *service.Service
	Logger  *slog.Logger
}

// NewApp 是工厂函数，负责照 Viper 配置组装这一台机器
// 它遵循配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	logger := slog.Default()

	// 1. 数据库
	db, err := store.Open(ctx, store.DBConfig{
		Driver:   viper.GetString("database.driver"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		LogSQL:   viper.GetBool("database.log_sql"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// 2. 写入串行化后端
	ser, err := buildSerializer()
	if err != nil {
		db.Close()
		return nil, err
	}

	// 3. 基础存储
	var st store.Store = store.New(db, ser, store.RetryConfig{
		MaxRetries: viper.GetInt("storage.max_retries"),
		BaseDelay:  time.Duration(viper.GetInt("storage.retry_base_ms")) * time.Millisecond,
		MaxDelay:   time.Duration(viper.GetInt("storage.retry_max_ms")) * time.Millisecond,
	}, logger)

	// 4. 可选写队列：并发提交方排队，后台单工作者消化
	var queue *lock.Queue
	if viper.GetBool("queue.enabled") {
		queue = lock.NewQueue()
		queue.Start()
		st = queued.New(st, queue)
	}

	// 5. 可选读缓存。配置开了却连不上 Redis 是装配错误，直接失败
	if viper.GetBool("cache.enabled") {
		st, err = cache.New(st, cache.Config{
			RedisURL: viper.GetString("cache.redis_url"),
			TTL:      time.Duration(viper.GetInt("cache.ttl_seconds")) * time.Second,
			Logger:   logger,
		})
		if err != nil {
			if queue != nil {
				queue.Stop()
			}
			db.Close()
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
	}

	// 6. 计算器与服务 (配置单位换算成字节)
	computer := hasher.New(hasher.Config{
		BlockSize:       viper.GetInt("hash.block_size_kb") * 1024,
		BinaryBlockSize: viper.GetInt("hash.binary_block_size_mb") * 1024 * 1024,
		BinaryThreshold: int64(viper.GetInt("hash.binary_threshold_mb")) * 1024 * 1024,
		Workers:         viper.GetInt("hash.workers"),
	})

	svc := service.New(computer, st, service.Config{
		Enabled:        viper.GetBool("hash.enabled"),
		MaxContentSize: int64(viper.GetInt("hash.max_content_size_mb")) * 1024 * 1024,
		LogRetention:   time.Duration(viper.GetInt("storage.log_retention_days")) * 24 * time.Hour,
	}, logger)

	return &App{
		DB:      db,
		Store:   st,
		Queue:   queue,
		Service: svc,
		Logger:  logger,
	}, nil
}

func buildSerializer() (lock.Serializer, error) {
	mutexTimeout := time.Duration(viper.GetInt("lock.timeout_seconds")) * time.Second

	switch backend := viper.GetString("lock.backend"); backend {
	case "", "memory":
		return lock.NewMutex(mutexTimeout), nil

	case "file":
		return lock.NewFileLock(lock.FileLockConfig{
			Path:           viper.GetString("lock.file.path"),
			AcquireTimeout: time.Duration(viper.GetInt("lock.file.timeout_seconds")) * time.Second,
			PollInterval:   time.Duration(viper.GetInt("lock.file.poll_ms")) * time.Millisecond,
			StaleAfter:     time.Duration(viper.GetInt("lock.file.stale_seconds")) * time.Second,
			MutexTimeout:   mutexTimeout,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported lock backend: %q", backend)
	}
}

// Close 按依赖反序收尾：先停队列 (消化完积压)，再归还数据库连接
func (a *App) Close() error {
	if a.Queue != nil {
		a.Queue.Stop()
	}
	return a.DB.Close()
}
