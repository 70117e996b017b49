package queued

import (
	"context"
	"time"

	"hashvault/pkg/lock"
	"hashvault/pkg/store"
	"hashvault/pkg/types"
)

// 写操作优先级：删除是用户显式动作最急，保存次之，后台清理垫底
const (
	PriorityCleanup = 0
	PrioritySave    = 5
	PriorityDelete  = 10
)

// QueuedStore 是一个装饰器，把写路径收敛到 lock.Queue 的单个后台工作者。
// 高并发提交方不再一起挤串行化器，而是排队等各自的结果；
// 队列按优先级出队，同优先级先到先得。读路径不排队，直接透传。
type QueuedStore struct {
	backend store.Store
	queue   *lock.Queue
}

var _ store.Store = (*QueuedStore)(nil)

// New 包装底层存储。queue 的 Start/Stop 由应用生命周期负责
func New(backend store.Store, queue *lock.Queue) *QueuedStore {
	return &QueuedStore{backend: backend, queue: queue}
}

func (s *QueuedStore) SaveIncremental(ctx context.Context, fileID, fileType, scope string, hashes []types.Hash) (store.SaveStats, error) {
	var stats store.SaveStats
	err := s.queue.Do(ctx, PrioritySave, "save:"+fileID, func(ctx context.Context) error {
		var err error
		stats, err = s.backend.SaveIncremental(ctx, fileID, fileType, scope, hashes)
		return err
	})
	if err != nil {
		return store.SaveStats{}, err
	}
	return stats, nil
}

func (s *QueuedStore) DeleteScope(ctx context.Context, fileID, scope string) (int64, error) {
	var deleted int64
	err := s.queue.Do(ctx, PriorityDelete, "delete-scope:"+fileID, func(ctx context.Context) error {
		var err error
		deleted, err = s.backend.DeleteScope(ctx, fileID, scope)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *QueuedStore) DeleteFile(ctx context.Context, fileID string) (int64, error) {
	var deleted int64
	err := s.queue.Do(ctx, PriorityDelete, "delete-file:"+fileID, func(ctx context.Context) error {
		var err error
		deleted, err = s.backend.DeleteFile(ctx, fileID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *QueuedStore) CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	var deleted int64
	err := s.queue.Do(ctx, PriorityCleanup, "cleanup-logs", func(ctx context.Context) error {
		var err error
		deleted, err = s.backend.CleanupLogs(ctx, olderThan)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// 读路径与辅助路径不排队，直接透传

func (s *QueuedStore) Load(ctx context.Context, fileID, scope string) ([]types.Hash, error) {
	return s.backend.Load(ctx, fileID, scope)
}

func (s *QueuedStore) LogOperation(ctx context.Context, entry store.LogEntry) error {
	return s.backend.LogOperation(ctx, entry)
}

func (s *QueuedStore) Stats(ctx context.Context) (store.Stats, error) {
	return s.backend.Stats(ctx)
}
