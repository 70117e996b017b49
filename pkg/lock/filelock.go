package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// 跨进程锁的默认参数
const (
	DefaultFileTimeout  = 60 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStaleAfter   = 5 * time.Minute
)

// FileLockConfig 配置锁文件路径与各项时限
type FileLockConfig struct {
	Path           string        // 锁文件路径，默认在系统临时目录
	AcquireTimeout time.Duration // 抢锁等待上限，默认 60s
	PollInterval   time.Duration // 轮询间隔，默认 100ms
	StaleAfter     time.Duration // 残留判定年龄，默认 5min
	MutexTimeout   time.Duration // 进程内先行互斥的超时，默认 30s
}

func (c FileLockConfig) withDefaults() FileLockConfig {
	if c.Path == "" {
		c.Path = filepath.Join(os.TempDir(), "hashvault.lock")
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultFileTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	return c
}

// FileLock 是跨进程的串行化后端：
// 同进程内先过一道互斥，再对共享锁文件做独占抢占 (O_CREATE|O_EXCL)。
// 多个 OS 进程共用同一个存储文件时用它。
// 崩溃进程留下的锁靠残留回收自愈：锁龄超过阈值且持有 pid 已死即强制清除。
type FileLock struct {
	cfg   FileLockConfig
	local *Mutex
}

func NewFileLock(cfg FileLockConfig) *FileLock {
	cfg = cfg.withDefaults()
	return &FileLock{
		cfg:   cfg,
		local: NewMutex(cfg.MutexTimeout),
	}
}

func (l *FileLock) Do(ctx context.Context, op string, fn func() error) error {
	return l.local.Do(ctx, op, func() error {
		if err := l.acquireFile(ctx, op); err != nil {
			return err
		}
		defer l.releaseFile()

		return fn()
	})
}

// acquireFile 以独占创建的方式抢锁文件，占用时按间隔轮询直到超时。
// 锁文件内容是 "op:pid:unix秒"，供残留判定与排障使用。
func (l *FileLock) acquireFile(ctx context.Context, op string) error {
	deadline := time.Now().Add(l.cfg.AcquireTimeout)

	for {
		f, err := os.OpenFile(l.cfg.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%s:%d:%d\n", op, os.Getpid(), time.Now().Unix())
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("%s: create lock file %s: %w", op, l.cfg.Path, err)
		}

		// 锁被占：先看是不是崩溃进程留下的残骸，是就清掉立刻重试
		if l.healStale() {
			continue
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%s: lock file %s still held after %s: %w",
				op, l.cfg.Path, l.cfg.AcquireTimeout, ErrTimeout)
		}

		select {
		case <-time.After(l.cfg.PollInterval):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
}

// healStale 判定现存锁文件是否为残留：锁龄超过阈值，且记录的持有进程已不存活
// (内容解析不出持有者的旧锁同样按残留处理)。是则强制清除并返回 true。
func (l *FileLock) healStale() bool {
	info, err := os.Stat(l.cfg.Path)
	if os.IsNotExist(err) {
		return true // 对方刚释放，直接重试
	}
	if err != nil {
		return false
	}

	if time.Since(info.ModTime()) < l.cfg.StaleAfter {
		return false
	}

	if pid, ok := l.ownerPID(); ok && processAlive(pid) {
		return false
	}

	// Remove 失败说明别的等待者抢先清掉了，效果一样
	_ = os.Remove(l.cfg.Path)
	return true
}

// ownerPID 从锁文件内容解析持有进程号
func (l *FileLock) ownerPID() (int, bool) {
	raw, err := os.ReadFile(l.cfg.Path)
	if err != nil {
		return 0, false
	}

	parts := strings.Split(strings.TrimSpace(string(raw)), ":")
	if len(parts) != 3 {
		return 0, false
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive 用信号 0 探测进程是否存活
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (l *FileLock) releaseFile() {
	// 删除失败的锁会在锁龄到期后被残留回收清掉
	_ = os.Remove(l.cfg.Path)
}
