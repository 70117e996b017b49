package lock

import (
	"context"
	"fmt"
	"time"
)

// DefaultAcquireTimeout 是进程内互斥的默认等待上限
const DefaultAcquireTimeout = 30 * time.Second

// Mutex 是进程内的串行化后端：带超时的互斥，等待者按到达顺序放行。
// 单进程部署用它就够了；不可重入，一次 Do 覆盖一个完整的逻辑写事务。
type Mutex struct {
	sem     chan struct{}
	timeout time.Duration
}

func NewMutex(timeout time.Duration) *Mutex {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Mutex{
		sem:     make(chan struct{}, 1),
		timeout: timeout,
	}
}

func (m *Mutex) Do(ctx context.Context, op string, fn func() error) error {
	if err := m.acquire(ctx, op); err != nil {
		return err
	}
	defer m.release()

	return fn()
}

func (m *Mutex) acquire(ctx context.Context, op string) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: waited %s: %w", op, m.timeout, ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (m *Mutex) release() {
	<-m.sem
}
