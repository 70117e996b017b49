package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hashvault/pkg/lock"
	"hashvault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrRetriesExhausted 表示瞬时故障在重试次数用尽后仍未消退
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryConfig 瞬时故障的指数退避重试策略
type RetryConfig struct {
	MaxRetries int           // 额外重试次数，默认 3
	BaseDelay  time.Duration // 首次退避，默认 500ms
	MaxDelay   time.Duration // 退避上限，默认 30s
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Storage 是 Store 的 GORM 实现。
// 每条写路径都包在串行化器里；锁超时和数据库忙按退避重试，其余错误直接返回。
type Storage struct {
	db     *DB
	ser    lock.Serializer
	retry  RetryConfig
	logger *slog.Logger
}

var _ Store = (*Storage)(nil)

func New(db *DB, ser lock.Serializer, retry RetryConfig, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		db:     db,
		ser:    ser,
		retry:  retry.withDefaults(),
		logger: logger,
	}
}

// -----------------------------------------------------------------------------
// 1. 增量保存 (核心路径)
// -----------------------------------------------------------------------------

// SaveIncremental 把一批哈希与现存记录比对后落库。
// 重复同步未变的内容不产生任何 UPDATE，这是增量语义的全部意义。
func (s *Storage) SaveIncremental(ctx context.Context, fileID, fileType, scope string, hashes []types.Hash) (SaveStats, error) {
	var stats SaveStats
	op := "save:" + fileID

	err := s.withRetry(ctx, op, func() error {
		return s.ser.Do(ctx, op, func() error {
			return s.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				st, err := s.applyIncremental(tx, fileID, fileType, scope, hashes)
				if err != nil {
					return err
				}
				stats = st
				return nil
			})
		})
	})
	if err != nil {
		return SaveStats{}, err
	}
	return stats, nil
}

// applyIncremental 在一个事务里完成比对与写入
func (s *Storage) applyIncremental(tx *gorm.DB, fileID, fileType, scope string, hashes []types.Hash) (SaveStats, error) {
	var stats SaveStats

	// 1. 读出该 (file, scope) 的全部现存记录
	var existing []HashRecord
	if err := tx.Where("file_id = ? AND scope = ?", fileID, scope).Find(&existing).Error; err != nil {
		return stats, fmt.Errorf("failed to load existing hashes: %w", err)
	}

	// 坏记录也要进身份表，否则重插会撞唯一约束；
	// 它们在值比对时必然不等，走更新路径顺带自愈
	byKey := make(map[types.HashKey]HashRecord, len(existing))
	for _, rec := range existing {
		if !types.Digest(rec.Value).IsValid() {
			s.logger.Warn("corrupt hash value in storage",
				slog.String("file_id", rec.FileID),
				slog.String("scope", rec.Scope),
				slog.String("kind", rec.Kind),
				slog.Int("content_index", rec.ContentIndex))
		}
		byKey[types.HashKey{Kind: types.Kind(rec.Kind), Index: rec.ContentIndex}] = rec
	}

	// 2. 逐个位置定性：插入 / 更新 / 不动
	now := time.Now()
	var toInsert []HashRecord
	for _, h := range hashes {
		meta, err := marshalMeta(h.Meta)
		if err != nil {
			return stats, err
		}

		rec, ok := byKey[h.Key()]
		if !ok {
			toInsert = append(toInsert, HashRecord{
				FileID:       fileID,
				FileType:     fileType,
				Scope:        scope,
				Kind:         string(h.Kind),
				ContentIndex: h.ContentIndex,
				Value:        string(h.Value),
				Meta:         meta,
			})
			stats.Inserted++
			continue
		}

		if rec.Value == string(h.Value) {
			stats.Unchanged++
			continue
		}

		// 值变了才触碰这一行
		result := tx.Model(&HashRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"value":      string(h.Value),
				"meta":       meta,
				"updated_at": now,
			})
		if result.Error != nil {
			return stats, fmt.Errorf("failed to update hash record %d: %w", rec.ID, result.Error)
		}
		stats.Updated++
	}

	// 3. 新位置一次性批量插入
	if len(toInsert) > 0 {
		if err := tx.Create(&toInsert).Error; err != nil {
			return stats, fmt.Errorf("failed to insert hash records: %w", err)
		}
	}

	return stats, nil
}

func marshalMeta(meta map[string]any) (datatypes.JSON, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hash meta: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// -----------------------------------------------------------------------------
// 2. 读取
// -----------------------------------------------------------------------------

// Load 读出某文件某作用域的全部现存哈希。
// 读路径不过串行化器，但同样享受瞬时故障重试。
func (s *Storage) Load(ctx context.Context, fileID, scope string) ([]types.Hash, error) {
	var records []HashRecord
	err := s.withRetry(ctx, "load:"+fileID, func() error {
		return s.db.GetConn().WithContext(ctx).
			Where("file_id = ? AND scope = ?", fileID, scope).
			Order("content_index ASC, kind ASC").
			Find(&records).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load hashes: %w", err)
	}

	hashes := make([]types.Hash, 0, len(records))
	for _, rec := range records {
		h, ok := s.toHash(rec)
		if !ok {
			continue
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// toHash 把数据库记录还原成哈希。坏记录剔除并告警，不让它污染后续比对
func (s *Storage) toHash(rec HashRecord) (types.Hash, bool) {
	if !types.Digest(rec.Value).IsValid() {
		s.logger.Warn("skipping corrupt hash record",
			slog.String("file_id", rec.FileID),
			slog.String("scope", rec.Scope),
			slog.String("kind", rec.Kind),
			slog.Int("content_index", rec.ContentIndex))
		return types.Hash{}, false
	}

	h := types.Hash{
		Value:        types.Digest(rec.Value),
		Kind:         types.Kind(rec.Kind),
		ContentIndex: rec.ContentIndex,
	}
	if len(rec.Meta) > 0 {
		// 元数据坏了不致命，哈希本身照用
		if err := json.Unmarshal(rec.Meta, &h.Meta); err != nil {
			h.Meta = nil
		}
	}
	return h, true
}

// -----------------------------------------------------------------------------
// 3. 显式删除
// -----------------------------------------------------------------------------

// DeleteScope 删掉某文件某作用域的全部记录
func (s *Storage) DeleteScope(ctx context.Context, fileID, scope string) (int64, error) {
	return s.deleteWhere(ctx, "delete-scope:"+fileID, "file_id = ? AND scope = ?", fileID, scope)
}

// DeleteFile 删掉某文件全部作用域的记录
func (s *Storage) DeleteFile(ctx context.Context, fileID string) (int64, error) {
	return s.deleteWhere(ctx, "delete-file:"+fileID, "file_id = ?", fileID)
}

func (s *Storage) deleteWhere(ctx context.Context, op, query string, args ...any) (int64, error) {
	var deleted int64
	err := s.withRetry(ctx, op, func() error {
		return s.ser.Do(ctx, op, func() error {
			result := s.db.GetConn().WithContext(ctx).Where(query, args...).Delete(&HashRecord{})
			if result.Error != nil {
				return result.Error
			}
			deleted = result.RowsAffected
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// 4. 审计与统计
// -----------------------------------------------------------------------------

// LogOperation 追加审计记录。辅助路径：不过串行化器也不重试，
// 失败由调用方降级处理，绝不拖垮主流程。
func (s *Storage) LogOperation(ctx context.Context, entry LogEntry) error {
	rec := ComputationLog{
		FileID:     entry.FileID,
		Operation:  entry.Operation,
		Status:     entry.Status,
		Error:      entry.Error,
		DurationMS: entry.Duration.Milliseconds(),
	}
	if err := s.db.GetConn().WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to log operation: %w", err)
	}
	return nil
}

// CleanupLogs 清掉早于保留期的审计记录
func (s *Storage) CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	op := "cleanup-logs"

	var deleted int64
	err := s.withRetry(ctx, op, func() error {
		return s.ser.Do(ctx, op, func() error {
			result := s.db.GetConn().WithContext(ctx).
				Where("created_at < ?", cutoff).
				Delete(&ComputationLog{})
			if result.Error != nil {
				return result.Error
			}
			deleted = result.RowsAffected
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Stats 汇总存储层概况
func (s *Storage) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		ByFileType: make(map[string]int64),
		ByKind:     make(map[string]int64),
	}
	conn := s.db.GetConn().WithContext(ctx)

	if err := conn.Model(&HashRecord{}).Count(&st.TotalRecords).Error; err != nil {
		return st, fmt.Errorf("failed to count records: %w", err)
	}
	if err := conn.Model(&HashRecord{}).Distinct("file_id").Count(&st.TotalFiles).Error; err != nil {
		return st, fmt.Errorf("failed to count files: %w", err)
	}

	type bucket struct {
		Name  string
		Count int64
	}

	var byType []bucket
	if err := conn.Model(&HashRecord{}).
		Select("file_type AS name, COUNT(*) AS count").
		Group("file_type").
		Scan(&byType).Error; err != nil {
		return st, fmt.Errorf("failed to group by file type: %w", err)
	}
	for _, b := range byType {
		st.ByFileType[b.Name] = b.Count
	}

	var byKind []bucket
	if err := conn.Model(&HashRecord{}).
		Select("kind AS name, COUNT(*) AS count").
		Group("kind").
		Scan(&byKind).Error; err != nil {
		return st, fmt.Errorf("failed to group by kind: %w", err)
	}
	for _, b := range byKind {
		st.ByKind[b.Name] = b.Count
	}

	// 最近 24h 的操作量与失败量
	since := time.Now().Add(-24 * time.Hour)
	if err := conn.Model(&ComputationLog{}).
		Where("created_at >= ?", since).
		Count(&st.RecentOps).Error; err != nil {
		return st, fmt.Errorf("failed to count recent operations: %w", err)
	}
	if err := conn.Model(&ComputationLog{}).
		Where("created_at >= ? AND status = ?", since, LogStatusFailed).
		Count(&st.RecentFailed).Error; err != nil {
		return st, fmt.Errorf("failed to count recent failures: %w", err)
	}

	return st, nil
}

// -----------------------------------------------------------------------------
// 5. 重试
// -----------------------------------------------------------------------------

// withRetry 对瞬时故障按指数退避重试，其余错误立刻返回
func (s *Storage) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := s.retry.BaseDelay

	var err error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying storage operation",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			delay *= 2
			if delay > s.retry.MaxDelay {
				delay = s.retry.MaxDelay
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
	}

	return fmt.Errorf("%s: %w: %w", op, ErrRetriesExhausted, err)
}

// isTransient 判定是否值得重试：锁竞争和 SQLite 的 busy/locked 算瞬时，
// 约束冲突这类确定性失败不算
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, lock.ErrTimeout) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy")
}
