package service

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"hashvault/pkg/hasher"
	"hashvault/pkg/lock"
	"hashvault/pkg/store"
	"hashvault/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupService 构建隔离的测试环境：内存 sqlite + 进程内互斥 + 静音日志。
// 返回 DB 句柄供测试直查或造数据
func setupService(t *testing.T, cfg Config, hcfg hasher.Config) (*Service, *store.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	storeDB := store.NewWithConn(db)
	require.NoError(t, storeDB.AutoMigrate(&store.HashRecord{}, &store.ComputationLog{}))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	retry := store.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	st := store.New(storeDB, lock.NewMutex(time.Second), retry, quiet)

	return New(hasher.New(hcfg), st, cfg, quiet), storeDB
}

// enabledConfig 默认打开引擎
func enabledConfig() Config {
	return Config{Enabled: true}
}

// sheet 组装表格内容
func sheet(rows ...types.Row) SheetContent {
	return SheetContent(rows)
}

func textRow(cells ...string) types.Row {
	row := make(types.Row, len(cells))
	for i, c := range cells {
		row[i] = types.StringCell(c)
	}
	return row
}

// mustSucceed 断言流水线成功，失败时带上结果里的错误串
func mustSucceed(t *testing.T, res *Result) {
	t.Helper()
	require.True(t, res.Success, "pipeline failed: %s", res.Error)
	require.Empty(t, res.Error)
}
