// Package lock 实现写入串行化：任一时刻最多允许一个写事务进入存储层。
// 提供两种后端 (进程内互斥、跨进程锁文件) 和一个面向异步提交方的
// 优先级队列前端；存储层的每条写路径都必须经由其中之一。
package lock

import (
	"context"
	"errors"
)

// ErrTimeout 表示在限定时间内没有拿到写入权。
// 这是可重试错误：存储层会按退避策略重试，而不是立刻放弃。
var ErrTimeout = errors.New("lock acquire timeout")

// Serializer 是单写者纪律的入口。
// fn 执行期间持有独占写入权；无论 fn 怎么退出，释放都是确定的。
// 拿不到锁绝不放行执行——要么持锁跑完，要么带错误返回。
// op 是操作名，只用于错误信息与锁文件内容。
type Serializer interface {
	Do(ctx context.Context, op string, fn func() error) error
}
