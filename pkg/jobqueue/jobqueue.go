// Package jobqueue 提供基于消息队列的命名持久任务队列。
// 每个任务类型绑定一个 topic 和一个处理函数，消费循环提供 at-least-once 语义：
// 消费与提交之间进程崩溃会导致重复投递，处理函数必须幂等。
package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/mq"
)

// State 任务生命周期状态
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateRemoved   State = "removed"
)

// Handler 任务处理函数。投递侧错误应在函数内部捕获并记录，
// 返回非 nil 错误仅用于生命周期统计与死信投递，不触发重试。
type Handler func(ctx context.Context, msg *mq.Message) error

// Producer 任务入队所需的最小生产者接口，由 mq.KafkaProducer 实现
type Producer interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

// Consumer 消费循环所需的最小消费者接口，由 mq.KafkaConsumer 实现
type Consumer interface {
	ReadMessage(ctx context.Context) (*mq.Message, error)
	Close() error
}

// ConsumerFactory 按 topic 创建消费者
type ConsumerFactory func(topic string) (Consumer, error)

// DeadLetter 处理失败任务的死信投递，由 mq.DeadLetterQueue 实现
type DeadLetter interface {
	Send(ctx context.Context, msg *mq.Message, reason string, err error) error
}

// Observer 生命周期回调，用于指标埋点
type Observer func(kind string, state State)

// Queue 命名任务队列集合
type Queue struct {
	producer    Producer
	newConsumer ConsumerFactory
	deadLetter  DeadLetter
	observer    Observer

	handlers map[string]Handler

	mu        sync.Mutex
	consumers []Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	closed    bool
}

// Option 队列可选配置
type Option func(*Queue)

// WithDeadLetter 设置死信投递
func WithDeadLetter(dl DeadLetter) Option {
	return func(q *Queue) { q.deadLetter = dl }
}

// WithObserver 设置生命周期回调
func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

// New 创建任务队列
func New(producer Producer, factory ConsumerFactory, opts ...Option) *Queue {
	q := &Queue{
		producer:    producer,
		newConsumer: factory,
		handlers:    make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register 绑定任务类型与处理函数。重复绑定或在启动后绑定属编程错误。
func (q *Queue) Register(kind string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("jobqueue: cannot register %q after ProcessAll", kind)
	}
	if handler == nil {
		return fmt.Errorf("jobqueue: nil handler for %q", kind)
	}
	if _, ok := q.handlers[kind]; ok {
		return fmt.Errorf("jobqueue: duplicate handler for %q", kind)
	}
	q.handlers[kind] = handler
	return nil
}

// Enqueue 将任务写入对应队列。引用未注册的任务类型立即报错。
func (q *Queue) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	if _, ok := q.handlers[kind]; !ok {
		return fmt.Errorf("jobqueue: unknown job kind %q", kind)
	}

	if err := q.producer.SendMessage(ctx, kind, uuid.New().String(), payload); err != nil {
		return fmt.Errorf("jobqueue: enqueue %q: %w", kind, err)
	}

	q.observe(kind, StateWaiting)
	logger.Debug(ctx, "job enqueued", "kind", kind)
	return nil
}

// ProcessAll 为每个已注册任务类型启动一个消费循环
func (q *Queue) ProcessAll(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("jobqueue: ProcessAll called twice")
	}
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("jobqueue: queue is closed")
	}
	q.started = true

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for kind, handler := range q.handlers {
		consumer, err := q.newConsumer(kind)
		if err != nil {
			q.mu.Unlock()
			q.Close()
			return fmt.Errorf("jobqueue: consumer for %q: %w", kind, err)
		}
		q.consumers = append(q.consumers, consumer)

		q.wg.Add(1)
		go q.consumeLoop(runCtx, kind, handler, consumer)
	}
	q.mu.Unlock()

	logger.Info(ctx, "job queue processing started", "kinds", len(q.handlers))
	return nil
}

// Close 停止所有消费循环并等待其退出。幂等，不保证在途任务完成。
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	consumers := q.consumers
	q.consumers = nil
	q.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	q.wg.Wait()

	logger.Info(context.Background(), "job queue closed")
	return nil
}

func (q *Queue) consumeLoop(ctx context.Context, kind string, handler Handler, consumer Consumer) {
	defer q.wg.Done()

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "job dequeue failed", "kind", kind, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		q.observe(kind, StateActive)
		logger.Debug(ctx, "job active", "kind", kind, "key", msg.Key, "offset", msg.Offset)

		if err := q.runHandler(ctx, kind, handler, msg); err != nil {
			q.observe(kind, StateFailed)
			logger.Error(ctx, "job failed", "kind", kind, "key", msg.Key, "error", err)

			if q.deadLetter != nil {
				if dlqErr := q.deadLetter.Send(ctx, msg, "handler failed", err); dlqErr != nil {
					logger.Error(ctx, "dead letter send failed", "kind", kind, "error", dlqErr)
				} else {
					q.observe(kind, StateRemoved)
				}
			}
			continue
		}

		q.observe(kind, StateCompleted)
		logger.Debug(ctx, "job completed", "kind", kind, "key", msg.Key)
	}
}

// runHandler 执行处理函数，panic 视作任务失败而不是拖垮消费循环
func (q *Queue) runHandler(ctx context.Context, kind string, handler Handler, msg *mq.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobqueue: handler for %q panicked: %v", kind, r)
		}
	}()
	return handler(ctx, msg)
}

func (q *Queue) observe(kind string, state State) {
	if q.observer != nil {
		q.observer(kind, state)
	}
}
