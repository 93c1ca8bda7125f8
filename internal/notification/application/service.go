package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/metrics"
)

// Deps 通知应用服务的全部依赖
type Deps struct {
	Store     domain.NotificationRepository
	Prefs     domain.PreferenceRepository
	Queue     domain.JobEnqueuer
	Registry  domain.ConnectionRegistry
	Transport domain.RealtimeTransport
	Projects  domain.ProjectLookup
	Issues    domain.IssueLookup
	Accounts  domain.AccountLookup
	Metrics   *metrics.Metrics
}

// NotificationService 通知服务门面：按事件类型组织的分发器集合加查询与偏好命令
type NotificationService struct {
	dispatchers map[domain.EventKind]*Dispatcher
	background  *Background
	query       *NotificationQuery
	settings    *PreferenceCommand
}

// NewNotificationService 装配通知服务。每种事件类型得到一个组合分发器，
// 成员顺序固定为 [邮件, 推送]，但渠道之间不保证投递顺序。
func NewNotificationService(deps Deps) *NotificationService {
	pushDeps := PushDeps{
		Prefs:     deps.Prefs,
		Accounts:  deps.Accounts,
		Store:     deps.Store,
		Registry:  deps.Registry,
		Transport: deps.Transport,
		Projects:  deps.Projects,
		Issues:    deps.Issues,
		Metrics:   deps.Metrics,
	}

	dispatchers := map[domain.EventKind]*Dispatcher{
		domain.EventInvitation: NewDispatcher(domain.EventInvitation,
			NewInvitationEmail(deps.Prefs, deps.Queue, deps.Projects, deps.Metrics),
			NewInvitationPush(pushDeps),
		),
		domain.EventKicked: NewDispatcher(domain.EventKicked,
			NewKickedEmail(deps.Prefs, deps.Queue, deps.Projects, deps.Metrics),
			NewKickedPush(pushDeps),
		),
		domain.EventKickedAdmin: NewDispatcher(domain.EventKickedAdmin,
			NewKickedAdminEmail(deps.Prefs, deps.Queue, deps.Projects, deps.Metrics),
			NewKickedAdminPush(pushDeps),
		),
		domain.EventRoleUpdated: NewDispatcher(domain.EventRoleUpdated,
			NewRoleUpdatedEmail(deps.Prefs, deps.Queue, deps.Projects, deps.Metrics),
			NewRoleUpdatedPush(pushDeps),
		),
		domain.EventRoleUpdatedAdmin: NewDispatcher(domain.EventRoleUpdatedAdmin,
			NewRoleUpdatedAdminEmail(deps.Prefs, deps.Queue, deps.Projects, deps.Metrics),
			NewRoleUpdatedAdminPush(pushDeps),
		),
		domain.EventIssueAssigned: NewDispatcher(domain.EventIssueAssigned,
			NewIssueAssignedEmail(deps.Prefs, deps.Queue, deps.Issues, deps.Metrics),
			NewIssueAssignedPush(pushDeps),
		),
		domain.EventProjectDeleted: NewDispatcher(domain.EventProjectDeleted,
			NewProjectDeletedEmail(deps.Prefs, deps.Queue, deps.Metrics),
			NewProjectDeletedPush(pushDeps),
		),
	}

	return &NotificationService{
		dispatchers: dispatchers,
		background:  NewBackground(),
		query:       NewNotificationQuery(deps.Store),
		settings:    NewPreferenceCommand(deps.Prefs),
	}
}

// Dispatcher 返回指定事件类型的分发器，引用未知事件类型属编程错误
func (s *NotificationService) Dispatcher(kind domain.EventKind) (*Dispatcher, error) {
	d, ok := s.dispatchers[kind]
	if !ok {
		return nil, fmt.Errorf("no dispatcher for event kind %q", kind)
	}
	return d, nil
}

// Dispatch 在后台对事件做 fire-and-forget 分发。
// 触发方的请求不等待投递完成，也看不到投递错误。
func (s *NotificationService) Dispatch(ctx context.Context, recipientID string, payload domain.Payload) error {
	d, err := s.Dispatcher(payload.Kind())
	if err != nil {
		return err
	}
	s.background.Dispatch(ctx, d, recipientID, payload)
	return nil
}

// Close 等待在途分发完成
func (s *NotificationService) Close() {
	s.background.Close()
}

// --- Query (Reads) ---

// GetHistory 分页获取通知历史
func (s *NotificationService) GetHistory(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, int64, error) {
	return s.query.GetHistory(ctx, recipientID, limit, offset)
}

// GetUnread 获取未读通知
func (s *NotificationService) GetUnread(ctx context.Context, recipientID string) ([]*domain.Notification, error) {
	return s.query.GetUnread(ctx, recipientID)
}

// MarkRead 标记单条通知已读
func (s *NotificationService) MarkRead(ctx context.Context, recipientID string, id uint64) error {
	return s.query.MarkRead(ctx, recipientID, id)
}

// MarkAllRead 标记全部通知已读
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) error {
	return s.query.MarkAllRead(ctx, recipientID)
}

// --- Settings ---

// UpdatePreference 更新通知偏好开关
func (s *NotificationService) UpdatePreference(ctx context.Context, pref *domain.Preference) error {
	return s.settings.Update(ctx, pref)
}

// ListPreferences 获取收件人的全部偏好记录
func (s *NotificationService) ListPreferences(ctx context.Context, recipientID string) ([]*domain.Preference, error) {
	return s.settings.List(ctx, recipientID)
}
