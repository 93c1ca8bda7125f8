package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/metrics"
)

// EmailComposer 组装一封邮件。返回 (nil, nil) 表示静默跳过，
// 例如关联实体已被并发删除。投递是尽力而为，不与触发写入保持事务一致。
type EmailComposer func(ctx context.Context, recipientID string, payload domain.Payload) (*domain.EmailJob, error)

// EmailNotifier 邮件渠道服务。每种事件类型一个实例，
// 投递动作只是一次任务入队，真正的 SMTP 发送由队列 worker 完成。
type EmailNotifier struct {
	kind    domain.EventKind
	prefs   domain.PreferenceRepository
	queue   domain.JobEnqueuer
	compose EmailComposer
	metrics *metrics.Metrics
}

// NewEmailNotifier 创建邮件渠道服务
func NewEmailNotifier(
	kind domain.EventKind,
	prefs domain.PreferenceRepository,
	queue domain.JobEnqueuer,
	compose EmailComposer,
	m *metrics.Metrics,
) *EmailNotifier {
	return &EmailNotifier{
		kind:    kind,
		prefs:   prefs,
		queue:   queue,
		compose: compose,
		metrics: m,
	}
}

// Notify 实现 domain.Notifier。投递失败只记录日志，永不向上传播。
func (n *EmailNotifier) Notify(ctx context.Context, recipientID string, payload domain.Payload) error {
	enabled, err := n.prefs.IsEnabled(ctx, recipientID, n.kind, domain.ChannelEmail)
	if err != nil {
		// 偏好读取失败按关闭处理
		logger.Error(ctx, "email preference check failed",
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

	job, err := n.compose(ctx, recipientID, payload)
	if err != nil {
		logger.Error(ctx, "email compose failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}
	if job == nil {
		logger.Debug(ctx, "email notification skipped, context entity missing",
			"event_kind", n.kind,
			"recipient", recipientID,
		)
		n.record("skipped")
		return nil
	}

	if err := n.queue.Enqueue(ctx, domain.EmailJobKind(n.kind), job); err != nil {
		logger.Error(ctx, "email job enqueue failed",
			"event_kind", n.kind,
			"recipient", recipientID,
			"error", err,
		)
		n.record("failed")
		return nil
	}

	n.record("enqueued")
	return nil
}

func (n *EmailNotifier) record(outcome string) {
	if n.metrics != nil {
		n.metrics.RecordNotification(string(domain.ChannelEmail), string(n.kind), outcome)
	}
}

// 以下构造函数按事件类型绑定组装逻辑。收件人标识即邮件地址。

// NewInvitationEmail 受邀加入项目的邮件服务
func NewInvitationEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, projects domain.ProjectLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventInvitation, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.InvitationPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			name, err := projects.ProjectName(ctx, payload.ProjectID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(name),
			}, nil
		}, m)
}

// NewKickedEmail 被移出项目的邮件服务
func NewKickedEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, projects domain.ProjectLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventKicked, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.KickedPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			name, err := projects.ProjectName(ctx, payload.ProjectID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(name),
			}, nil
		}, m)
}

// NewKickedAdminEmail 管理员视角成员被移出的邮件服务
func NewKickedAdminEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, projects domain.ProjectLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventKickedAdmin, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.KickedAdminPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			name, err := projects.ProjectName(ctx, payload.ProjectID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(name),
			}, nil
		}, m)
}

// NewRoleUpdatedEmail 角色变更的邮件服务
func NewRoleUpdatedEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, projects domain.ProjectLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventRoleUpdated, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.RoleUpdatedPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			name, err := projects.ProjectName(ctx, payload.ProjectID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(name),
			}, nil
		}, m)
}

// NewRoleUpdatedAdminEmail 管理员视角成员角色变更的邮件服务
func NewRoleUpdatedAdminEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, projects domain.ProjectLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventRoleUpdatedAdmin, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.RoleUpdatedAdminPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			name, err := projects.ProjectName(ctx, payload.ProjectID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(name),
			}, nil
		}, m)
}

// NewIssueAssignedEmail 议题被指派的邮件服务
func NewIssueAssignedEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, issues domain.IssueLookup, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventIssueAssigned, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.IssueAssignedPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			title, err := issues.IssueTitle(ctx, payload.IssueID)
			if err != nil {
				return nil, err
			}
			if title == "" {
				return nil, nil
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(title),
			}, nil
		}, m)
}

// NewProjectDeletedEmail 项目被删除的邮件服务。项目名由载荷直接携带，无需查询。
func NewProjectDeletedEmail(prefs domain.PreferenceRepository, queue domain.JobEnqueuer, m *metrics.Metrics) *EmailNotifier {
	return NewEmailNotifier(domain.EventProjectDeleted, prefs, queue,
		func(ctx context.Context, recipientID string, p domain.Payload) (*domain.EmailJob, error) {
			payload, ok := p.(domain.ProjectDeletedPayload)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T", p)
			}
			return &domain.EmailJob{
				To:      recipientID,
				Subject: payload.Texts.Subject,
				HTML:    payload.Texts.Body(payload.ProjectName),
			}, nil
		}, m)
}
