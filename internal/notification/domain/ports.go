package domain

import (
	"context"
)

// Notifier 单渠道通知投递能力。实现必须自我隔离故障：
// 投递失败在内部记录日志后吞掉，绝不向上传播，保证组合分发时
// 一个渠道的失败不会阻断其它渠道。
type Notifier interface {
	Notify(ctx context.Context, recipientID string, payload Payload) error
}

// NotificationRepository 推送通知记录仓储
type NotificationRepository interface {
	// Append 追加一条通知记录，成功后回填存储层分配的 ID
	Append(ctx context.Context, n *Notification) error
	// ListByRecipient 分页获取收件人的通知列表
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*Notification, int64, error)
	// ListUnread 获取收件人的全部未读通知
	ListUnread(ctx context.Context, recipientID string) ([]*Notification, error)
	// MarkRead 将指定通知标记为已读
	MarkRead(ctx context.Context, recipientID string, id uint64) error
	// MarkAllRead 将收件人的全部通知标记为已读
	MarkAllRead(ctx context.Context, recipientID string) error
}

// PreferenceRepository 通知偏好仓储
type PreferenceRepository interface {
	// IsEnabled 查询偏好开关，缺失记录返回 false
	IsEnabled(ctx context.Context, recipientID string, kind EventKind, channel Channel) (bool, error)
	// Update 设置偏好开关
	Update(ctx context.Context, pref *Preference) error
	// ListByRecipient 获取收件人的全部偏好记录
	ListByRecipient(ctx context.Context, recipientID string) ([]*Preference, error)
}

// ConnectionRegistry 收件人到实时连接的映射。
// 本子系统只读，注册/注销由实时传输层驱动。
type ConnectionRegistry interface {
	// Resolve 返回收件人的活跃连接 ID，无连接时 ok 为 false
	Resolve(ctx context.Context, recipientID string) (connID string, ok bool, err error)
}

// RealtimeTransport 实时推送传输
type RealtimeTransport interface {
	// Send 向指定连接推送事件
	Send(ctx context.Context, connID string, event string, payload interface{}) error
}

// JobEnqueuer 任务入队端口，由任务队列实现
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind string, payload interface{}) error
}

// EmailSender 邮件发送端口，由 SMTP 等具体传输实现。
// 发送必须幂等友好：任务队列按至少一次语义重试。
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ProjectLookup 项目只读查询。项目不存在时返回空串且无错误。
type ProjectLookup interface {
	ProjectName(ctx context.Context, projectID string) (string, error)
}

// IssueLookup 议题只读查询。议题不存在时返回空串且无错误。
type IssueLookup interface {
	IssueTitle(ctx context.Context, issueID string) (string, error)
}

// AccountLookup 账号只读查询。账号不存在时返回空串且无错误。
type AccountLookup interface {
	AccountIDByEmail(ctx context.Context, email string) (string, error)
}
