package application

import (
	"context"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

// NotificationQuery 处理所有通知相关的查询操作（Queries）。
// 客户端重连后通过 GetHistory/GetUnread 补齐错过的推送。
type NotificationQuery struct {
	store domain.NotificationRepository
}

// NewNotificationQuery 构造函数。
func NewNotificationQuery(store domain.NotificationRepository) *NotificationQuery {
	return &NotificationQuery{store: store}
}

// GetHistory 分页获取通知历史
func (q *NotificationQuery) GetHistory(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, int64, error) {
	return q.store.ListByRecipient(ctx, recipientID, limit, offset)
}

// GetUnread 获取全部未读通知
func (q *NotificationQuery) GetUnread(ctx context.Context, recipientID string) ([]*domain.Notification, error) {
	return q.store.ListUnread(ctx, recipientID)
}

// MarkRead 标记单条通知已读
func (q *NotificationQuery) MarkRead(ctx context.Context, recipientID string, id uint64) error {
	return q.store.MarkRead(ctx, recipientID, id)
}

// MarkAllRead 标记收件人全部通知已读
func (q *NotificationQuery) MarkAllRead(ctx context.Context, recipientID string) error {
	return q.store.MarkAllRead(ctx, recipientID)
}
