package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hashvault/pkg/hasher"
	"hashvault/pkg/lock"
	"hashvault/pkg/service"
	"hashvault/pkg/store"
	"hashvault/pkg/store/queued"
	"hashvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupStack 组装完整链路：内存 sqlite -> 互斥 -> 写队列 -> 服务。
// 返回 DB 句柄供测试直查审计表，返回队列供断言吞吐计数。
func setupStack(t *testing.T) (*service.Service, *store.DB, *lock.Queue) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 共享缓存的内存库在多连接并发下会报表锁，收到单连接上
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := store.NewWithConn(conn)
	require.NoError(t, db.AutoMigrate(&store.HashRecord{}, &store.ComputationLog{}))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	retry := store.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 20 * time.Millisecond}
	base := store.New(db, lock.NewMutex(2*time.Second), retry, quiet)

	q := lock.NewQueue()
	q.Start()
	t.Cleanup(q.Stop)

	svc := service.New(hasher.New(hasher.Config{}), queued.New(base, q), service.Config{Enabled: true}, quiet)
	return svc, db, q
}

func row(cells ...string) types.Row {
	r := make(types.Row, len(cells))
	for i, c := range cells {
		r[i] = types.StringCell(c)
	}
	return r
}

// TestFullWorkflow 验证完整链路的核心特性：
// 冷同步全量入库 -> 暖同步零写入 -> 编辑增量更新 -> 范围隔离 -> 审计与统计
func TestFullWorkflow(t *testing.T) {
	svc, db, q := setupStack(t)
	ctx := context.Background()

	const fileID = "spreadsheet-roster"

	// 1. 冷同步 (首次见到该范围)
	// -------------------------------------------------------------
	t.Log("Step 1: Cold sync (everything is new)...")
	v1 := service.SheetContent{
		row("alice", "admin"),
		row("bob", "viewer"),
		row("carol", "editor"),
	}
	res := svc.ComputeAndDiff(ctx, fileID, types.FileTypeSheet, "Sheet1", v1)
	require.True(t, res.Success, "cold sync failed: %s", res.Error)
	assert.Equal(t, 3, res.Summary.Added)
	assert.True(t, res.Stored)
	require.NotNil(t, res.SaveStats)
	assert.Equal(t, 3, res.SaveStats.Inserted)

	// 写后即读：队列外的读路径必须立刻看到落库结果
	stored, err := svc.StoredHashes(ctx, fileID, "Sheet1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, h := range stored {
		assert.Equal(t, i, h.ContentIndex)
		assert.Equal(t, types.KindRow, h.Kind)
		assert.True(t, h.Value.IsValid())
	}
	coldDigests := make([]types.Digest, len(stored))
	for i, h := range stored {
		coldDigests[i] = h.Value
	}

	// 2. 暖同步 (内容没变)
	// -------------------------------------------------------------
	t.Log("Step 2: Warm sync (identical content, storage must stay untouched)...")
	res = svc.ComputeAndDiff(ctx, fileID, types.FileTypeSheet, "Sheet1", v1)
	require.True(t, res.Success, "warm sync failed: %s", res.Error)
	assert.Equal(t, 3, res.Summary.Unchanged)
	assert.Zero(t, res.Summary.TotalChanges)
	assert.False(t, res.Stored, "unchanged content must not touch storage")
	assert.Nil(t, res.SaveStats)

	// 3. 编辑同步 (改一行、删一行)
	// -------------------------------------------------------------
	t.Log("Step 3: Edit sync (one modified, one deleted)...")
	v2 := service.SheetContent{
		row("alice", "admin"),
		row("bob", "owner"),
	}
	res = svc.ComputeAndDiff(ctx, fileID, types.FileTypeSheet, "Sheet1", v2)
	require.True(t, res.Success, "edit sync failed: %s", res.Error)
	assert.Equal(t, 1, res.Summary.Modified)
	assert.Equal(t, 1, res.Summary.Deleted)
	assert.Equal(t, 1, res.Summary.Unchanged)
	assert.True(t, res.Stored)

	// 缩短的行只报告为 Deleted，库里的旧位置保留
	stored, err = svc.StoredHashes(ctx, fileID, "Sheet1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, coldDigests[0], stored[0].Value)
	assert.NotEqual(t, coldDigests[1], stored[1].Value)
	assert.Equal(t, coldDigests[2], stored[2].Value)

	// 4. 范围隔离
	// -------------------------------------------------------------
	t.Log("Step 4: Scope isolation (second tab, then delete the first)...")
	res = svc.ComputeAndDiff(ctx, fileID, types.FileTypeSheet, "Sheet2", service.SheetContent{
		row("q1", "42"),
	})
	require.True(t, res.Success, "second scope sync failed: %s", res.Error)

	removed, err := svc.DeleteScope(ctx, fileID, "Sheet1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	stored, err = svc.StoredHashes(ctx, fileID, "Sheet1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	stored, err = svc.StoredHashes(ctx, fileID, "Sheet2")
	require.NoError(t, err)
	assert.Len(t, stored, 1, "deleting one scope must not touch its siblings")

	// 5. 审计与统计
	// -------------------------------------------------------------
	t.Log("Step 5: Audit trail and stats...")
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRecords)
	assert.EqualValues(t, 1, stats.TotalFiles)
	assert.EqualValues(t, 1, stats.ByFileType["sheet"])
	assert.EqualValues(t, 1, stats.ByKind["row"])
	// 四次流水线执行 (冷、暖、编辑、第二范围) 各留一条成功审计
	assert.EqualValues(t, 4, stats.RecentOps)
	assert.Zero(t, stats.RecentFailed)

	var logCount int64
	require.NoError(t, db.GetConn().Model(&store.ComputationLog{}).
		Where("status = ?", store.LogStatusSuccess).Count(&logCount).Error)
	assert.EqualValues(t, 4, logCount)

	// 保留期内没有可清的审计
	deleted, err := svc.Cleanup(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// 队列吞吐：冷存、编辑存、第二范围存、删范围、清理 = 5 次写操作
	qs := q.Stats()
	assert.EqualValues(t, 5, qs.Processed)
	assert.Zero(t, qs.Failed)
	assert.Zero(t, qs.Depth)

	t.Log("✅ SUCCESS: full workflow passed")
}

// TestConcurrentSyncSameScope 用互不相同的负载并发冲击同一个 (file, scope)。
// 串行化层保证每次落库都是原子的：最终状态必须恰好等于其中某一个负载，
// 绝不允许出现跨负载混合的半成品。
func TestConcurrentSyncSameScope(t *testing.T) {
	svc, db, _ := setupStack(t)
	ctx := context.Background()

	const (
		fileID  = "contended-sheet"
		scope   = "Data"
		writers = 8
		rows    = 4
	)

	// 预先算好每个负载的期望指纹 (行数相同，位置一一对应)
	payloads := make([]service.SheetContent, writers)
	expected := make([][]types.Digest, writers)
	for w := 0; w < writers; w++ {
		content := make(service.SheetContent, rows)
		for r := 0; r < rows; r++ {
			content[r] = row(fmt.Sprintf("writer-%d", w), fmt.Sprintf("row-%d", r))
		}
		payloads[w] = content

		hashes, err := svc.ComputeHashes(ctx, types.FileTypeSheet, content)
		require.NoError(t, err)
		expected[w] = make([]types.Digest, rows)
		for i, h := range hashes {
			expected[w][i] = h.Value
		}
	}

	results := make([]*service.Result, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = svc.ComputeAndDiff(ctx, fileID, types.FileTypeSheet, scope, payloads[w])
		}(w)
	}
	wg.Wait()

	for w, res := range results {
		require.True(t, res.Success, "writer %d failed: %s", w, res.Error)
	}

	// 最终状态必须完整等于某一个负载
	stored, err := svc.StoredHashes(ctx, fileID, scope)
	require.NoError(t, err)
	require.Len(t, stored, rows)

	got := make([]types.Digest, rows)
	for i, h := range stored {
		require.Equal(t, i, h.ContentIndex)
		got[i] = h.Value
	}

	winner := -1
	for w := range expected {
		match := true
		for i := range got {
			if got[i] != expected[w][i] {
				match = false
				break
			}
		}
		if match {
			winner = w
			break
		}
	}
	require.GreaterOrEqual(t, winner, 0, "stored state mixes rows from different payloads: %v", got)
	t.Logf("✅ final state matches payload of writer %d intact", winner)

	// 八次执行全部留痕
	var logCount int64
	require.NoError(t, db.GetConn().Model(&store.ComputationLog{}).
		Where("file_id = ? AND status = ?", fileID, store.LogStatusSuccess).Count(&logCount).Error)
	assert.EqualValues(t, writers, logCount)
}
