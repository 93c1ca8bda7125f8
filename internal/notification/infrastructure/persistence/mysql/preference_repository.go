package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// PreferenceModel 通知偏好数据库模型
type PreferenceModel struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	RecipientID string `gorm:"column:recipient_id;type:varchar(255);uniqueIndex:uk_pref,priority:1;not null"`
	EventKind   string `gorm:"column:event_kind;type:varchar(32);uniqueIndex:uk_pref,priority:2;not null"`
	Channel     string `gorm:"column:channel;type:varchar(16);uniqueIndex:uk_pref,priority:3;not null"`
	Enabled     bool   `gorm:"column:enabled;not null"`
}

// TableName 指定表名
func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

// preferenceRepositoryImpl 是 domain.PreferenceRepository 接口的 GORM 实现。
type preferenceRepositoryImpl struct {
	db *gorm.DB
}

// NewPreferenceRepository 创建通知偏好仓储实例
func NewPreferenceRepository(db *gorm.DB) domain.PreferenceRepository {
	return &preferenceRepositoryImpl{db: db}
}

// IsEnabled 实现 domain.PreferenceRepository.IsEnabled。
// 无记录视为关闭。
func (r *preferenceRepositoryImpl) IsEnabled(ctx context.Context, recipientID string, kind domain.EventKind, channel domain.Channel) (bool, error) {
	var m PreferenceModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND event_kind = ? AND channel = ?", recipientID, string(kind), string(channel)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Error(ctx, "preference_repository.IsEnabled failed", "recipient_id", recipientID, "error", err)
		return false, fmt.Errorf("failed to query preference: %w", err)
	}
	return m.Enabled, nil
}

// Update 实现 domain.PreferenceRepository.Update，幂等写入。
func (r *preferenceRepositoryImpl) Update(ctx context.Context, p *domain.Preference) error {
	m := &PreferenceModel{
		RecipientID: p.RecipientID,
		EventKind:   string(p.EventKind),
		Channel:     string(p.Channel),
		Enabled:     p.Enabled,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "event_kind"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled"}),
	}).Create(m).Error
	if err != nil {
		logger.Error(ctx, "preference_repository.Update failed", "recipient_id", p.RecipientID, "error", err)
		return fmt.Errorf("failed to update preference: %w", err)
	}
	return nil
}

// ListByRecipient 实现 domain.PreferenceRepository.ListByRecipient
func (r *preferenceRepositoryImpl) ListByRecipient(ctx context.Context, recipientID string) ([]*domain.Preference, error) {
	var ms []PreferenceModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("event_kind, channel").
		Find(&ms).Error
	if err != nil {
		logger.Error(ctx, "preference_repository.ListByRecipient failed", "recipient_id", recipientID, "error", err)
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	res := make([]*domain.Preference, len(ms))
	for i, m := range ms {
		res[i] = &domain.Preference{
			RecipientID: m.RecipientID,
			EventKind:   domain.EventKind(m.EventKind),
			Channel:     domain.Channel(m.Channel),
			Enabled:     m.Enabled,
		}
	}
	return res, nil
}
