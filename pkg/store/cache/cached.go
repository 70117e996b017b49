package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hashvault/pkg/store"
	"hashvault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，为底层的 store.Store 添加 Redis 读缓存层。
// 只缓存 Load 的结果：同步场景读多写少，省掉的是每次比对前的全量查库。
// 写路径透传到底层并使相关缓存键失效；落库比对永远以数据库为准，
// 回填与失效的竞态最多让缓存脏一个 TTL 周期。
type CachedStore struct {
	backend store.Store
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

var _ store.Store = (*CachedStore)(nil)

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 缓存过期时间
	Logger   *slog.Logger
}

func New(backend store.Store, cfg Config) (*CachedStore, error) {
	// 解析 URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		logger:  logger,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(fileID, scope string) string {
	return fmt.Sprintf("hv:hashes:%s:%s", fileID, scope)
}

// Load 优先查 Redis。缓存故障降级为直查数据库，绝不让缓存拖垮主流程
func (s *CachedStore) Load(ctx context.Context, fileID, scope string) ([]types.Hash, error) {
	key := s.cacheKey(fileID, scope)

	// 1. 查 Redis
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var hashes []types.Hash
		if jsonErr := json.Unmarshal(raw, &hashes); jsonErr == nil {
			// Cache Hit，不发起数据库查询
			return hashes, nil
		}
		// 反序列化失败按坏缓存处理：删掉，走底层
		s.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("redis read failed, falling back to database",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	// 2. 缓存未命中 (Cache Miss)，查底层存储
	hashes, err := s.backend.Load(ctx, fileID, scope)
	if err != nil {
		return nil, err
	}

	// 3. 异步回填 (Cache Fill)，不阻塞主流程。
	// 用 context.Background()：上层 ctx 取消也不耽误回填完成
	go func() {
		fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if payload, err := json.Marshal(hashes); err == nil {
			s.client.Set(fillCtx, key, payload, s.ttl)
		}
	}()

	return hashes, nil
}

// SaveIncremental 透传落库，成功后使该 (file, scope) 的缓存失效。
// 收缩时库里仍保留消失的位置，新哈希列表不等于库内状态，所以只能失效不能写穿
func (s *CachedStore) SaveIncremental(ctx context.Context, fileID, fileType, scope string, hashes []types.Hash) (store.SaveStats, error) {
	stats, err := s.backend.SaveIncremental(ctx, fileID, fileType, scope, hashes)
	if err != nil {
		return stats, err
	}
	s.invalidate(ctx, s.cacheKey(fileID, scope))
	return stats, nil
}

func (s *CachedStore) DeleteScope(ctx context.Context, fileID, scope string) (int64, error) {
	deleted, err := s.backend.DeleteScope(ctx, fileID, scope)
	if err != nil {
		return deleted, err
	}
	s.invalidate(ctx, s.cacheKey(fileID, scope))
	return deleted, nil
}

// DeleteFile 透传删除，然后扫掉该文件所有作用域的缓存键
func (s *CachedStore) DeleteFile(ctx context.Context, fileID string) (int64, error) {
	deleted, err := s.backend.DeleteFile(ctx, fileID)
	if err != nil {
		return deleted, err
	}

	pattern := fmt.Sprintf("hv:hashes:%s:*", fileID)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		s.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("redis scan failed during invalidation",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()))
	}
	return deleted, nil
}

// invalidate 尽力失效。失败只告警，残留的键会在 TTL 后自然过期
func (s *CachedStore) invalidate(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("redis invalidation failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// 以下辅助路径不经缓存，直接透传

func (s *CachedStore) LogOperation(ctx context.Context, entry store.LogEntry) error {
	return s.backend.LogOperation(ctx, entry)
}

func (s *CachedStore) CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.backend.CleanupLogs(ctx, olderThan)
}

func (s *CachedStore) Stats(ctx context.Context) (store.Stats, error) {
	return s.backend.Stats(ctx)
}
