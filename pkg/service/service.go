// Package service 把哈希计算、变更比对、增量落库串成一条流水线，
// 是上层 (CLI、同步任务) 面对的唯一入口。
// 入口方法不向上抛错：一切失败折叠进结构化结果，调用方看字段决定下一步。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hashvault/pkg/hasher"
	"hashvault/pkg/store"
	"hashvault/pkg/types"
	"hashvault/pkg/validator"
)

var (
	ErrUnknownFileType = errors.New("unknown file type")
	ErrContentMismatch = errors.New("content does not match declared file type")
	ErrContentTooLarge = errors.New("content exceeds size limit")
	ErrInvalidHash     = errors.New("invalid hash")
)

// 服务级默认值
const (
	DefaultMaxContentSize = 500 * 1024 * 1024 // 500MB
	DefaultLogRetention   = 30 * 24 * time.Hour
)

// -----------------------------------------------------------------------------
// 1. 内容类型 (封闭集合)
// -----------------------------------------------------------------------------

// Content 是可哈希的文件内容。实现集合是封闭的：三种内容对应三类文件，
// 声明的 FileType 与实际内容形状不符按失败处理
type Content interface {
	fileType() types.FileType
	size() int64
}

// SheetContent 表格内容，逐行哈希，大小按行数计
type SheetContent []types.Row

func (SheetContent) fileType() types.FileType { return types.FileTypeSheet }
func (c SheetContent) size() int64            { return int64(len(c)) }

// DocContent 文档文本，按固定块哈希
type DocContent string

func (DocContent) fileType() types.FileType { return types.FileTypeDoc }
func (c DocContent) size() int64            { return int64(len(c)) }

// PDFContent 原始字节，小文件整体哈希，大文件逐块
type PDFContent []byte

func (PDFContent) fileType() types.FileType { return types.FileTypePDF }
func (c PDFContent) size() int64            { return int64(len(c)) }

// -----------------------------------------------------------------------------
// 2. 服务与结果
// -----------------------------------------------------------------------------

// Config 服务级配置
type Config struct {
	Enabled        bool          // 引擎总开关，关着时一切入口静默放行
	MaxContentSize int64         // 字节型内容的容量上限，默认 500MB
	LogRetention   time.Duration // 审计保留期，默认 30 天
}

func (c Config) withDefaults() Config {
	if c.MaxContentSize <= 0 {
		c.MaxContentSize = DefaultMaxContentSize
	}
	if c.LogRetention <= 0 {
		c.LogRetention = DefaultLogRetention
	}
	return c
}

// Service 是哈希流水线的编排者
type Service struct {
	computer *hasher.Computer
	store    store.Store
	cfg      Config
	logger   *slog.Logger
}

func New(computer *hasher.Computer, st store.Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		computer: computer,
		store:    st,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Result 是一次流水线执行的结构化结果
type Result struct {
	FileID      string               `json:"file_id"`
	FileType    types.FileType       `json:"file_type"`
	Scope       string               `json:"scope,omitempty"`
	Hashes      []types.Hash         `json:"hashes,omitempty"`
	Changes     *validator.ChangeSet `json:"-"`
	Summary     *validator.Summary   `json:"summary,omitempty"`
	Stored      bool                 `json:"stored"`
	SaveStats   *store.SaveStats     `json:"save_stats,omitempty"`
	ContentSize int64                `json:"content_size"`
	Duration    time.Duration        `json:"duration"`
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------
// 3. 核心流水线
// -----------------------------------------------------------------------------

// ComputeAndDiff 对一份内容走完整流水线：守卫、计算、与库里现状比对、
// 有变化则增量落库。任何一步失败都折叠进 Result，方法本身绝不抛错。
func (s *Service) ComputeAndDiff(ctx context.Context, fileID string, fileType types.FileType, scope string, content Content) *Result {
	start := time.Now()
	res := &Result{FileID: fileID, FileType: fileType, Scope: scope}
	if content != nil {
		res.ContentSize = content.size()
	}

	// 引擎关着：静默放行，既不算失败也不写审计
	if !s.cfg.Enabled {
		res.Success = true
		res.Duration = time.Since(start)
		s.logger.Debug("hash engine disabled, skipping", slog.String("file_id", fileID))
		return res
	}

	err := s.runPipeline(ctx, res, fileType, content)
	res.Duration = time.Since(start)

	if err != nil {
		res.Error = err.Error()
		s.logger.Error("hash pipeline failed",
			slog.String("file_id", fileID),
			slog.String("file_type", string(fileType)),
			slog.String("scope", scope),
			slog.Duration("duration", res.Duration),
			slog.String("error", res.Error))
		s.logOutcome(ctx, res)
		return res
	}

	res.Success = true
	s.logger.Info("hash pipeline completed",
		slog.String("file_id", fileID),
		slog.String("file_type", string(fileType)),
		slog.String("scope", scope),
		slog.Int("added", res.Summary.Added),
		slog.Int("modified", res.Summary.Modified),
		slog.Int("deleted", res.Summary.Deleted),
		slog.Int("unchanged", res.Summary.Unchanged),
		slog.Bool("stored", res.Stored),
		slog.Duration("duration", res.Duration))
	s.logOutcome(ctx, res)
	return res
}

func (s *Service) runPipeline(ctx context.Context, res *Result, fileType types.FileType, content Content) error {
	// 1. 计算
	hashes, err := s.ComputeHashes(ctx, fileType, content)
	if err != nil {
		return err
	}
	res.Hashes = hashes

	// 2. 与库里现状比对
	stored, err := s.store.Load(ctx, res.FileID, res.Scope)
	if err != nil {
		return err
	}
	changes := validator.Compare(stored, hashes)
	summary := changes.Summarize()
	res.Changes = changes
	res.Summary = &summary

	// 3. 有变化才落库。全无变化且一个未变位置都没有，说明是空内容首轮，
	// 也要走一次保存把"已同步过"这件事记下来
	if changes.HasChanges() || changes.UnchangedCount == 0 {
		stats, err := s.store.SaveIncremental(ctx, res.FileID, string(fileType), res.Scope, hashes)
		if err != nil {
			return err
		}
		res.Stored = true
		res.SaveStats = &stats
	}

	return nil
}

// ComputeHashes 只计算不落库。守卫、类型匹配、结果校验都在这里，
// 流水线和旁路调用 (预览、对账) 共用同一套约束
func (s *Service) ComputeHashes(ctx context.Context, fileType types.FileType, content Content) ([]types.Hash, error) {
	if !fileType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFileType, fileType)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: nil content", ErrContentMismatch)
	}
	if content.fileType() != fileType {
		return nil, fmt.Errorf("%w: declared %s, got %s", ErrContentMismatch, fileType, content.fileType())
	}

	// 容量守卫只管字节型内容，表格按行数计不设限
	switch content.(type) {
	case DocContent, PDFContent:
		if content.size() > s.cfg.MaxContentSize {
			return nil, fmt.Errorf("%w: %d bytes over limit %d", ErrContentTooLarge, content.size(), s.cfg.MaxContentSize)
		}
	}

	var (
		hashes []types.Hash
		err    error
	)
	switch c := content.(type) {
	case SheetContent:
		hashes, err = s.computer.ComputeRowBatch(ctx, c)
	case DocContent:
		hashes, err = s.computer.ComputeTextBlocks(ctx, string(c))
	case PDFContent:
		hashes, err = s.computer.ComputeBinary(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	if err := validator.ValidateBatch(hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return hashes, nil
}

// Changes 对一批已算好的哈希做只读比对预览，不写任何东西
func (s *Service) Changes(ctx context.Context, fileID, scope string, hashes []types.Hash) (*validator.ChangeSet, error) {
	if err := validator.ValidateBatch(hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	stored, err := s.store.Load(ctx, fileID, scope)
	if err != nil {
		return nil, err
	}
	return validator.Compare(stored, hashes), nil
}

// -----------------------------------------------------------------------------
// 4. 存储旁路
// -----------------------------------------------------------------------------

// StoredHashes 读出库里某文件某作用域的现存哈希
func (s *Service) StoredHashes(ctx context.Context, fileID, scope string) ([]types.Hash, error) {
	return s.store.Load(ctx, fileID, scope)
}

// StoreHashes 直接落库一批哈希 (跳过变更门槛，落库本身仍是增量的)。
// 迁移、对账补录这类场景用
func (s *Service) StoreHashes(ctx context.Context, fileID string, fileType types.FileType, scope string, hashes []types.Hash) (store.SaveStats, error) {
	if !fileType.Valid() {
		return store.SaveStats{}, fmt.Errorf("%w: %q", ErrUnknownFileType, fileType)
	}
	if err := validator.ValidateBatch(hashes); err != nil {
		return store.SaveStats{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return s.store.SaveIncremental(ctx, fileID, string(fileType), scope, hashes)
}

// DeleteScope 删掉某文件某作用域的全部哈希
func (s *Service) DeleteScope(ctx context.Context, fileID, scope string) (int64, error) {
	deleted, err := s.store.DeleteScope(ctx, fileID, scope)
	if err != nil {
		return 0, err
	}
	s.logger.Info("deleted scope hashes",
		slog.String("file_id", fileID),
		slog.String("scope", scope),
		slog.Int64("deleted", deleted))
	return deleted, nil
}

// DeleteFile 删掉某文件全部作用域的哈希
func (s *Service) DeleteFile(ctx context.Context, fileID string) (int64, error) {
	deleted, err := s.store.DeleteFile(ctx, fileID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("deleted file hashes",
		slog.String("file_id", fileID),
		slog.Int64("deleted", deleted))
	return deleted, nil
}

// Cleanup 清理过期审计。olderThan <= 0 时用配置的保留期
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = s.cfg.LogRetention
	}
	deleted, err := s.store.CleanupLogs(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleaned up computation logs",
		slog.Duration("older_than", olderThan),
		slog.Int64("deleted", deleted))
	return deleted, nil
}

// Stats 汇总存储层概况
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

// logOutcome 审计落库是尽力而为：失败降级为告警，绝不影响主结果
func (s *Service) logOutcome(ctx context.Context, res *Result) {
	entry := store.LogEntry{
		FileID:    res.FileID,
		Operation: "compute_and_diff",
		Status:    store.LogStatusSuccess,
		Duration:  res.Duration,
	}
	if res.Error != "" {
		entry.Status = store.LogStatusFailed
		entry.Error = res.Error
	}

	if err := s.store.LogOperation(ctx, entry); err != nil {
		s.logger.Warn("failed to record operation log",
			slog.String("file_id", res.FileID),
			slog.String("error", err.Error()))
	}
}
