package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

// PreferenceCommand 处理通知偏好的写操作。
// 偏好是唯一的设置入口：分发路径对偏好只读。
type PreferenceCommand struct {
	prefs domain.PreferenceRepository
}

// NewPreferenceCommand 构造函数。
func NewPreferenceCommand(prefs domain.PreferenceRepository) *PreferenceCommand {
	return &PreferenceCommand{prefs: prefs}
}

// Update 设置偏好开关
func (c *PreferenceCommand) Update(ctx context.Context, pref *domain.Preference) error {
	if !domain.ValidEventKind(pref.EventKind) {
		return fmt.Errorf("unknown event kind %q", pref.EventKind)
	}
	if pref.Channel != domain.ChannelEmail && pref.Channel != domain.ChannelPush {
		return fmt.Errorf("unknown channel %q", pref.Channel)
	}
	return c.prefs.Update(ctx, pref)
}

// List 获取收件人的全部偏好记录
func (c *PreferenceCommand) List(ctx context.Context, recipientID string) ([]*domain.Preference, error) {
	return c.prefs.ListByRecipient(ctx, recipientID)
}
