package sender

import (
	"context"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// MockSender 只记录日志不真正发信，供本地开发与未配置 SMTP 时使用。
type MockSender struct{}

// NewMockSender 创建空发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

var _ domain.EmailSender = (*MockSender)(nil)

// Send 实现 domain.EmailSender.Send
func (s *MockSender) Send(ctx context.Context, to, subject, html string) error {
	logger.Info(ctx, "mock email sent", "to", to, "subject", subject, "size", len(html))
	return nil
}
