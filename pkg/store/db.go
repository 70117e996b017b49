package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig 数据库连接配置。sqlite 只看 Path，postgres 用其余字段
type DBConfig struct {
	Driver   string // "sqlite" (默认) 或 "postgres"
	Path     string // sqlite 数据库文件路径
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable" for local
	LogSQL   bool   // 打开 GORM 全量 SQL 日志，排障用
}

// DB 封装了 GORM 实例，作为哈希存储层的入口
type DB struct {
	conn *gorm.DB
}

// Open 建立数据库连接、配置连接池并迁移表结构
func Open(ctx context.Context, cfg DBConfig) (*DB, error) {
	dial, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	gormLog := logger.Default.LogMode(logger.Silent)
	if cfg.LogSQL {
		gormLog = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 写入走单写者纪律，池子不用大
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 验证连接是否存活
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	// 自动迁移表结构
	if err := db.AutoMigrate(&HashRecord{}, &ComputationLog{}); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}

	return &DB{conn: db}, nil
}

func (c DBConfig) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", "sqlite":
		path := c.Path
		if path == "" {
			path = "hashvault.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL + busy_timeout：并发读写先由数据库自己排队，不轻易报 busy
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=30000&_synchronous=NORMAL&_foreign_keys=on", path)
		return sqlite.Open(dsn), nil

	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode,
		)
		return postgres.Open(dsn), nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", c.Driver)
	}
}

// NewWithConn 允许使用现有的 GORM 连接初始化 DB。
// 这对于依赖注入、复用连接池或单元测试非常有用。
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// AutoMigrate 自动迁移表结构
func (d *DB) AutoMigrate(models ...any) error {
	return d.conn.AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 归还底层连接池
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
