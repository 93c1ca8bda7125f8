package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/metrics"
)

// PushComposer 组装推送文案与附加上下文。ok 为 false 表示静默跳过。
type PushComposer func(ctx context.Context, payload domain.Payload) (message string, meta domain.Metadata, ok bool, err error)

// PushNotifier 推送渠道服务。每种事件类型一个实例。
// 不变式：先持久化记录再推送，只有落库成功的记录才会被推送，
// 保证补发读取与实时推送看到一致的历史。
type PushNotifier struct {
	kind      domain.EventKind
	prefs     domain.PreferenceRepository
	accounts  domain.AccountLookup
	store     domain.NotificationRepository
	registry  domain.ConnectionRegistry
	transport domain.RealtimeTransport
	compose   PushComposer
	metrics   *metrics.Metrics
}

// NewPushNotifier 创建推送渠道服务
func NewPushNotifier(
	kind domain.EventKind,
	prefs domain.PreferenceRepository,
	accounts domain.AccountLookup,
	store domain.NotificationRepository,
	registry domain.ConnectionRegistry,
	transport domain.RealtimeTransport,
	compose PushComposer,
	m *metrics.Metrics,
) *PushNotifier {
	return &PushNotifier{
		kind:      kind,
		prefs:     prefs,
		accounts:  accounts,
		store:     store,
		registry:  registry,
		transport: transport,
		compose:   compose,
		metrics:   m,
	}
}

// Notify 实现 domain.Notifier。投递失败只记录日志，永不向上传播。
func (n *PushNotifier) Notify(ctx context.Context, recipientID string, payload domain.Payload) error {
	enabled, err := n.prefs.IsEnabled(ctx, recipientID, n.kind, domain.ChannelPush)
	if err != nil {
		logger.Error(ctx, "push preference check failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}
	if !enabled {
		n.record("skipped")
		return nil
	}

	accountID, err := n.accounts.AccountIDByEmail(ctx, recipientID)
	if err != nil {
		logger.Error(ctx, "push account lookup failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}
	if accountID == "" {
		// 收件人已不存在，静默跳过
		n.record("skipped")
		return nil
	}

	message, meta, ok, err := n.compose(ctx, payload)
	if err != nil {
		logger.Error(ctx, "push compose failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}
	if !ok {
		n.record("skipped")
		return nil
	}

	record := &domain.Notification{
		RecipientID: accountID,
		EventKind:   n.kind,
		Message:     message,
		Metadata:    meta,
		CreatedAt:   time.Now().UnixMilli(),
	}

	if err := n.store.Append(ctx, record); err != nil {
		// 落库失败则绝不推送
		logger.Error(ctx, "push record append failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}

	connID, connected, err := n.registry.Resolve(ctx, recipientID)
	if err != nil {
		logger.Error(ctx, "push connection resolve failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("stored")
		return nil
	}
	if !connected {
		// 离线：记录保留待补发，不重试推送
		n.record("stored")
		return nil
	}

	if err := n.transport.Send(ctx, connID, domain.PushEventName, record); err != nil {
		logger.Error(ctx, "push transmit failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"conn_id", connID,
			"error", err,
		)
		n.record("stored")
		return nil
	}

	n.record("delivered")
	return nil
}

func (n *PushNotifier) record(outcome string) {
	if n.metrics != nil {
		n.metrics.RecordNotification(string(domain.ChannelPush), string(n.kind), outcome)
	}
}

// 以下构造函数按事件类型绑定组装逻辑。

// PushDeps 推送渠道的公共依赖
type PushDeps struct {
	Prefs     domain.PreferenceRepository
	Accounts  domain.AccountLookup
	Store     domain.NotificationRepository
	Registry  domain.ConnectionRegistry
	Transport domain.RealtimeTransport
	Projects  domain.ProjectLookup
	Issues    domain.IssueLookup
	Metrics   *metrics.Metrics
}

func (d PushDeps) notifier(kind domain.EventKind, compose PushComposer) *PushNotifier {
	return NewPushNotifier(kind, d.Prefs, d.Accounts, d.Store, d.Registry, d.Transport, compose, d.Metrics)
}

// projectCompose 以项目名为文案参数的组装逻辑
func (d PushDeps) projectCompose(projectID string, texts domain.Texts, meta domain.Metadata) PushComposer {
	return func(ctx context.Context, _ domain.Payload) (string, domain.Metadata, bool, error) {
		name, err := d.Projects.ProjectName(ctx, projectID)
		if err != nil {
			return "", nil, false, err
		}
		if name == "" {
			return "", nil, false, nil
		}
		return texts.Message(name), meta, true, nil
	}
}

// NewInvitationPush 受邀加入项目的推送服务
func NewInvitationPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventInvitation, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.InvitationPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		meta := domain.Metadata{"project_id": payload.ProjectID}
		return d.projectCompose(payload.ProjectID, payload.Texts, meta)(ctx, p)
	})
}

// NewKickedPush 被移出项目的推送服务
func NewKickedPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventKicked, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.KickedPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		meta := domain.Metadata{"project_id": payload.ProjectID}
		return d.projectCompose(payload.ProjectID, payload.Texts, meta)(ctx, p)
	})
}

// NewKickedAdminPush 管理员视角成员被移出的推送服务
func NewKickedAdminPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventKickedAdmin, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.KickedAdminPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		meta := domain.Metadata{
			"project_id":        payload.ProjectID,
			"member_account_id": payload.MemberAccountID,
		}
		return d.projectCompose(payload.ProjectID, payload.Texts, meta)(ctx, p)
	})
}

// NewRoleUpdatedPush 角色变更的推送服务
func NewRoleUpdatedPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventRoleUpdated, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.RoleUpdatedPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		meta := domain.Metadata{
			"project_id": payload.ProjectID,
			"new_role":   payload.NewRole,
		}
		return d.projectCompose(payload.ProjectID, payload.Texts, meta)(ctx, p)
	})
}

// NewRoleUpdatedAdminPush 管理员视角成员角色变更的推送服务
func NewRoleUpdatedAdminPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventRoleUpdatedAdmin, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.RoleUpdatedAdminPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		meta := domain.Metadata{
			"project_id":        payload.ProjectID,
			"member_account_id": payload.MemberAccountID,
			"new_role":          payload.NewRole,
		}
		return d.projectCompose(payload.ProjectID, payload.Texts, meta)(ctx, p)
	})
}

// NewIssueAssignedPush 议题被指派的推送服务
func NewIssueAssignedPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventIssueAssigned, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.IssueAssignedPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		title, err := d.Issues.IssueTitle(ctx, payload.IssueID)
		if err != nil {
			return "", nil, false, err
		}
		if title == "" {
			return "", nil, false, nil
		}
		meta := domain.Metadata{"issue_id": payload.IssueID}
		return payload.Texts.Message(title), meta, true, nil
	})
}

// NewProjectDeletedPush 项目被删除的推送服务
func NewProjectDeletedPush(d PushDeps) *PushNotifier {
	return d.notifier(domain.EventProjectDeleted, func(ctx context.Context, p domain.Payload) (string, domain.Metadata, bool, error) {
		payload, ok := p.(domain.ProjectDeletedPayload)
		if !ok {
			return "", nil, false, fmt.Errorf("unexpected payload type %T", p)
		}
		return payload.Texts.Message(payload.ProjectName), nil, true, nil
	})
}
