// Package store 持久化内容哈希：以 (file_id, scope, kind, content_index)
// 为身份键做增量落库，重复同步未变的位置零写入。
// 所有写路径都经由 lock.Serializer，瞬时数据库故障按指数退避重试。
package store

import (
	"context"
	"time"

	"hashvault/pkg/types"
)

// 审计状态取值
const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
)

// SaveStats 是一次增量保存的落库统计
type SaveStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"` // 命中现存记录且值相同，零写入
}

// Total 本次触碰的位置总数
func (s SaveStats) Total() int {
	return s.Inserted + s.Updated + s.Unchanged
}

// LogEntry 是一条待落库的操作审计
type LogEntry struct {
	FileID    string
	Operation string
	Status    string // LogStatusSuccess / LogStatusFailed
	Error     string
	Duration  time.Duration
}

// Stats 是存储层运行概况
type Stats struct {
	TotalRecords int64            `json:"total_records"`
	TotalFiles   int64            `json:"total_files"`
	ByFileType   map[string]int64 `json:"by_file_type"`
	ByKind       map[string]int64 `json:"by_kind"`
	RecentOps    int64            `json:"recent_ops"`    // 最近 24h 操作数
	RecentFailed int64            `json:"recent_failed"` // 其中失败数
}

// Store 是哈希持久化的统一入口。
// 读缓存、写队列这些装饰器实现同一接口，叠加顺序由应用装配决定。
type Store interface {
	// SaveIncremental 与现存记录比对后增量落库：新位置插入、值变位置更新、
	// 未变位置零写入。比对与写入在单写者纪律下的同一个事务里完成。
	SaveIncremental(ctx context.Context, fileID, fileType, scope string, hashes []types.Hash) (SaveStats, error)

	// Load 读出某文件某作用域的全部现存哈希，按 content_index 升序
	Load(ctx context.Context, fileID, scope string) ([]types.Hash, error)

	// DeleteScope / DeleteFile 显式删除，返回删掉的记录数
	DeleteScope(ctx context.Context, fileID, scope string) (int64, error)
	DeleteFile(ctx context.Context, fileID string) (int64, error)

	// LogOperation 追加一条操作审计 (辅助路径，不走串行化)
	LogOperation(ctx context.Context, entry LogEntry) error

	// CleanupLogs 清掉早于保留期的审计记录，返回清掉的条数
	CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error)

	// Stats 汇总存储层概况
	Stats(ctx context.Context) (Stats, error)
}
