package store

import (
	"time"

	"gorm.io/datatypes"
)

// HashRecord 是一个内容位置的当前哈希在关系型数据库中的投影。
// 身份键是 (file_id, scope, kind, content_index)：同一位置算出新哈希
// 走更新而不是新增；位置从内容里消失后记录依旧保留，只有显式删除才清。
type HashRecord struct {
	ID uint `gorm:"primaryKey"`

	// FileID 是外部系统的文件标识 (Google Drive 文件 ID 等)
	FileID string `gorm:"type:varchar(255);not null;uniqueIndex:uq_file_scope_kind_idx,priority:1"`

	// Scope 是文件内的局部范围 (工作表名、文档分段)，整文件哈希留空。
	// 存空串而不是 NULL，否则唯一索引拦不住重复行
	Scope string `gorm:"type:varchar(255);not null;default:'';uniqueIndex:uq_file_scope_kind_idx,priority:2"`

	// FileType 文件类别 (sheet / doc / pdf)，统计分桶用
	FileType string `gorm:"type:varchar(32);index"`

	// Kind 哈希种类，ContentIndex 是该种类下的内容位置
	Kind         string `gorm:"type:varchar(32);not null;uniqueIndex:uq_file_scope_kind_idx,priority:3"`
	ContentIndex int    `gorm:"not null;uniqueIndex:uq_file_scope_kind_idx,priority:4"`

	// Value 是 64 位小写十六进制的 SHA-256
	Value string `gorm:"type:char(64);not null;index"`

	// Meta 哈希的附带描述 (行长、块大小等)，结构不固定
	Meta datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 强制指定表名
func (HashRecord) TableName() string {
	return "file_hashes"
}

// ComputationLog 是一次哈希操作的审计记录：只追加，按保留期定期清理
type ComputationLog struct {
	ID uint `gorm:"primaryKey"`

	FileID    string `gorm:"type:varchar(255);index"`
	Operation string `gorm:"type:varchar(64);not null"`
	Status    string `gorm:"type:varchar(16);not null"`
	Error     string `gorm:"type:text"`

	// DurationMS 执行耗时，毫秒
	DurationMS int64 `gorm:"column:duration_ms"`

	CreatedAt time.Time `gorm:"index"`
}

func (ComputationLog) TableName() string {
	return "hash_computation_logs"
}
