// Package application 通知分发的应用服务：组合分发器、渠道服务与查询
package application

import (
	"context"
	"sync"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// Dispatcher 组合分发器，对应一种事件类型，持有该事件的渠道服务有序列表。
// 调用方在领域事务提交后触发；Dispatcher 依次调用每个成员服务，
// 自身不捕获成员错误，成员服务必须内部隔离投递故障（见 domain.Notifier）。
type Dispatcher struct {
	kind    domain.EventKind
	members []domain.Notifier
}

// NewDispatcher 创建组合分发器
func NewDispatcher(kind domain.EventKind, members ...domain.Notifier) *Dispatcher {
	return &Dispatcher{
		kind:    kind,
		members: members,
	}
}

// Kind 返回分发器绑定的事件类型
func (d *Dispatcher) Kind() domain.EventKind { return d.kind }

// Notify 将事件分发到全部渠道。副作用即各成员服务的副作用，自身无返回语义：
// 调用方不得依赖完成顺序，也不会同步看到投递错误。
func (d *Dispatcher) Notify(ctx context.Context, recipientID string, payload domain.Payload) error {
	for _, member := range d.members {
		_ = member.Notify(ctx, recipientID, payload)
	}
	return nil
}

// Background 把 fire-and-forget 分发建模成显式的后台任务：
// 每次分发在受跟踪的 goroutine 上执行，panic 被捕获记录，
// Close 等待在途分发完成。
type Background struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewBackground 创建后台分发执行器
func NewBackground() *Background {
	return &Background{}
}

// Dispatch 在后台执行一次分发。执行器已关闭时丢弃并记录。
func (b *Background) Dispatch(ctx context.Context, notifier domain.Notifier, recipientID string, payload domain.Payload) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logger.Warn(ctx, "background dispatcher closed, notification dropped",
			"event_kind", payload.Kind(),
			"recipient", recipientID,
		)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	// 与触发请求的生命周期解耦，不继承其取消
	dispatchCtx := context.WithoutCancel(ctx)

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(dispatchCtx, "notification dispatch panicked",
					"event_kind", payload.Kind(),
					"recipient", recipientID,
					"panic", r,
				)
			}
		}()
		_ = notifier.Notify(dispatchCtx, recipientID, payload)
	}()
}

// Close 停止接收新分发并等待在途分发完成。幂等。
func (b *Background) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}
