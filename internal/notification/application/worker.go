package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/jobqueue"
	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/mq"
)

// RegisterEmailHandlers 为每种事件的邮件任务注册消费处理器。
// 队列是至少一次语义，同一封邮件可能重复投递，发送端以重复发信为可接受代价。
func RegisterEmailHandlers(q *jobqueue.Queue, sender domain.EmailSender) error {
	for _, kind := range domain.EventKinds() {
		jobKind := domain.EmailJobKind(kind)
		if jobKind == "" {
			return fmt.Errorf("no email job kind for event %s", kind)
		}
		if err := q.Register(jobKind, emailHandler(sender)); err != nil {
			return fmt.Errorf("register email handler for %s: %w", jobKind, err)
		}
	}
	return nil
}

// emailHandler 解码邮件任务并投递。解码失败属于毒消息，
// 记录日志后返回错误交由队列转入死信。
func emailHandler(sender domain.EmailSender) jobqueue.Handler {
	return func(ctx context.Context, msg *mq.Message) error {
		var job domain.EmailJob
		if err := msg.UnmarshalPayload(&job); err != nil {
			logger.Error(ctx, "email job decode failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			return fmt.Errorf("decode email job: %w", err)
		}

		if err := sender.Send(ctx, job.To, job.Subject, job.HTML); err != nil {
			logger.Error(ctx, "email job delivery failed", "to", job.To, "topic", msg.Topic, "error", err)
			return err
		}
		return nil
	}
}
