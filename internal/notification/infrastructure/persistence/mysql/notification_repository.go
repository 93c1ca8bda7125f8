// Package mysql 提供通知子系统各仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// NotificationModel 通知记录数据库模型
type NotificationModel struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	RecipientID string          `gorm:"column:recipient_id;type:varchar(255);index;not null"`
	EventKind   string          `gorm:"column:event_kind;type:varchar(32);not null"`
	Message     string          `gorm:"column:message;type:text"`
	Metadata    domain.Metadata `gorm:"column:metadata;type:json"`
	CreatedAt   int64           `gorm:"column:created_at;not null"`
	Read        bool            `gorm:"column:is_read;not null;default:false"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// notificationRepositoryImpl 是 domain.NotificationRepository 接口的 GORM 实现。
type notificationRepositoryImpl struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知记录仓储实例
func NewNotificationRepository(db *gorm.DB) domain.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

// Append 实现 domain.NotificationRepository.Append。
// 只追加，成功后将存储层分配的 ID 回填到实体。
func (r *notificationRepositoryImpl) Append(ctx context.Context, n *domain.Notification) error {
	m := &NotificationModel{
		RecipientID: n.RecipientID,
		EventKind:   string(n.EventKind),
		Message:     n.Message,
		Metadata:    n.Metadata,
		CreatedAt:   n.CreatedAt,
		Read:        n.Read,
	}

	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		logger.Error(ctx, "notification_repository.Append failed", "recipient_id", n.RecipientID, "error", err)
		return fmt.Errorf("failed to append notification: %w", err)
	}

	n.ID = m.ID
	return nil
}

// ListByRecipient 实现 domain.NotificationRepository.ListByRecipient
func (r *notificationRepositoryImpl) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, int64, error) {
	var ms []NotificationModel
	var total int64

	db := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("recipient_id = ?", recipientID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at desc").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		logger.Error(ctx, "notification_repository.ListByRecipient failed", "recipient_id", recipientID, "error", err)
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	res := make([]*domain.Notification, len(ms))
	for i, m := range ms {
		res[i] = r.toDomain(&m)
	}
	return res, total, nil
}

// ListUnread 实现 domain.NotificationRepository.ListUnread
func (r *notificationRepositoryImpl) ListUnread(ctx context.Context, recipientID string) ([]*domain.Notification, error) {
	var ms []NotificationModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("created_at desc").
		Find(&ms).Error
	if err != nil {
		logger.Error(ctx, "notification_repository.ListUnread failed", "recipient_id", recipientID, "error", err)
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}

	res := make([]*domain.Notification, len(ms))
	for i, m := range ms {
		res[i] = r.toDomain(&m)
	}
	return res, nil
}

// MarkRead 实现 domain.NotificationRepository.MarkRead
func (r *notificationRepositoryImpl) MarkRead(ctx context.Context, recipientID string, id uint64) error {
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true).Error
	if err != nil {
		logger.Error(ctx, "notification_repository.MarkRead failed", "id", id, "error", err)
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead 实现 domain.NotificationRepository.MarkAllRead
func (r *notificationRepositoryImpl) MarkAllRead(ctx context.Context, recipientID string) error {
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error
	if err != nil {
		logger.Error(ctx, "notification_repository.MarkAllRead failed", "recipient_id", recipientID, "error", err)
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepositoryImpl) toDomain(m *NotificationModel) *domain.Notification {
	return &domain.Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		EventKind:   domain.EventKind(m.EventKind),
		Message:     m.Message,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		Read:        m.Read,
	}
}
