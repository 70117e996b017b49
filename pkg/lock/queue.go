package lock

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueClosed 表示队列已停止，不再接收或执行操作
var ErrQueueClosed = errors.New("operation queue closed")

// operation 是队列里的一个待执行写操作
type operation struct {
	name     string
	priority int
	seq      uint64 // 到达序号，同优先级下保证 FIFO
	fn       func(context.Context) error
	enqueued time.Time
	done     chan error      // 结果回传给提交者 (future 语义)
	ctx      context.Context // 提交者的 ctx；排队期间取消则跳过执行
}

// opHeap 按 (priority 降序, seq 升序) 排列
type opHeap []*operation

func (h opHeap) Len() int { return len(h) }

func (h opHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h opHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *opHeap) Push(x any) { *h = append(*h, x.(*operation)) }

func (h *opHeap) Pop() any {
	old := *h
	n := len(old)
	op := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return op
}

// QueueStats 是队列运行统计
type QueueStats struct {
	Processed   uint64        // 已执行总数
	Failed      uint64        // 其中执行失败数
	Depth       int           // 当前积压
	AverageWait time.Duration // 已执行操作的平均排队等待
}

// Queue 把多个并发提交方收敛到一个后台工作者：
// 操作按优先级出队 (同优先级按到达顺序)，任一时刻最多执行一个。
// 提交方在 Do 里阻塞等待自己那个操作的结果。
// Start/Stop 由应用生命周期负责，两者不支持并发交错调用。
type Queue struct {
	mu      sync.Mutex
	heap    opHeap
	seq     uint64
	started bool

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	processed atomic.Uint64
	failed    atomic.Uint64
	totalWait atomic.Int64 // 纳秒累计，只计入已执行的操作
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Start 启动后台工作者，重复调用无效果
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.stop = make(chan struct{})
	q.wg.Add(1)
	go q.worker()
}

// Stop 优雅停止：不再接收新操作，已接受的积压执行完毕后工作者退出。
// 与 Stop 赛跑的提交可能被以 ErrQueueClosed 回绝；提交方绝不会无限悬挂。
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	close(q.stop)
	q.wg.Wait()
}

// Do 提交一个操作并等待它被执行完毕，返回操作自身的结果。
// priority 大者先行，同优先级按提交顺序。
// ctx 在排队期间取消：操作会被工作者跳过，这里返回 ctx 错误；
// 已开始执行的操作不会被中断 (没有写事务中途取消这回事)。
func (q *Queue) Do(ctx context.Context, priority int, name string, fn func(context.Context) error) error {
	op := &operation{
		name:     name,
		priority: priority,
		fn:       fn,
		enqueued: time.Now(),
		done:     make(chan error, 1),
		ctx:      ctx,
	}

	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	op.seq = q.seq
	heap.Push(&q.heap, op)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 返回运行统计
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	depth := q.heap.Len()
	q.mu.Unlock()

	st := QueueStats{
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Depth:     depth,
	}
	if st.Processed > 0 {
		st.AverageWait = time.Duration(q.totalWait.Load() / int64(st.Processed))
	}
	return st
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		op := q.next()
		if op == nil {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				q.drain()
				return
			}
		}
		q.run(op)
	}
}

// next 弹出当前最高优先级的操作，空队列返回 nil
func (q *Queue) next() *operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*operation)
}

func (q *Queue) run(op *operation) {
	// 提交方已放弃的操作直接跳过
	if err := op.ctx.Err(); err != nil {
		op.done <- err
		return
	}

	q.totalWait.Add(int64(time.Since(op.enqueued)))

	err := op.fn(op.ctx)
	q.processed.Add(1)
	if err != nil {
		q.failed.Add(1)
	}
	op.done <- err
}

// drain 把停止时还积压的操作逐个回绝
func (q *Queue) drain() {
	for {
		op := q.next()
		if op == nil {
			return
		}
		op.done <- ErrQueueClosed
	}
}
