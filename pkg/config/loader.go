package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .hv
		viper.AddConfigPath(".hv")
		// 3. 用户主目录下的 .hv
		viper.AddConfigPath(filepath.Join(home, ".hv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (HV_DATABASE_PATH、HV_HASH_WORKERS 等)
	viper.SetEnvPrefix("HV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 如果只是没找到配置文件，但可能有环境变量，不一定算错
		// 但如果是配置文件格式错，那就是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Println("🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// 哈希引擎
	viper.SetDefault("hash.enabled", true)
	viper.SetDefault("hash.block_size_kb", 4)
	viper.SetDefault("hash.binary_threshold_mb", 100)
	viper.SetDefault("hash.binary_block_size_mb", 2)
	viper.SetDefault("hash.max_content_size_mb", 500)
	viper.SetDefault("hash.workers", 0) // 0 = NumCPU

	// 数据库：默认单机 sqlite，postgres 走配置切换
	wd, _ := os.Getwd()
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", filepath.Join(wd, ".hv", "hashes.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "hashvault")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "hashvault")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)

	// 写入串行化
	viper.SetDefault("lock.backend", "memory") // memory | file
	viper.SetDefault("lock.timeout_seconds", 30)
	viper.SetDefault("lock.file.path", "") // 空串 = 系统临时目录
	viper.SetDefault("lock.file.timeout_seconds", 60)
	viper.SetDefault("lock.file.poll_ms", 100)
	viper.SetDefault("lock.file.stale_seconds", 300)

	// 存储重试与审计保留
	viper.SetDefault("storage.max_retries", 3)
	viper.SetDefault("storage.retry_base_ms", 500)
	viper.SetDefault("storage.retry_max_ms", 30000)
	viper.SetDefault("storage.log_retention_days", 30)

	// 读缓存 (可选)
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl_seconds", 300)

	// 写队列 (可选)
	viper.SetDefault("queue.enabled", false)
}
