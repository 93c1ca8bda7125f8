// Package domain 通知子系统的领域模型
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EventKind 领域事件类型，封闭集合
type EventKind string

const (
	EventInvitation       EventKind = "INVITATION"         // 受邀加入项目
	EventKicked           EventKind = "KICKED"             // 被移出项目
	EventKickedAdmin      EventKind = "KICKED_ADMIN"       // 管理员视角：成员被移出
	EventRoleUpdated      EventKind = "ROLE_UPDATED"       // 角色变更
	EventRoleUpdatedAdmin EventKind = "ROLE_UPDATED_ADMIN" // 管理员视角：成员角色变更
	EventIssueAssigned    EventKind = "ISSUE_ASSIGNED"     // 议题被指派
	EventProjectDeleted   EventKind = "PROJECT_DELETED"    // 项目被删除
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail Channel = "email" // 邮件
	ChannelPush  Channel = "push"  // 实时推送
)

// PushEventName 推送到客户端的固定事件名
const PushEventName = "new-notification"

// Metadata 通知附加上下文（如项目深链），以 JSON 存储
type Metadata map[string]string

// Value 实现 driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Notification 推送通知记录实体。追加写入，唯一允许的更新是翻转 Read。
type Notification struct {
	// ID 存储层分配的记录 ID
	ID uint64 `json:"id"`
	// RecipientID 收件人内部账号 ID
	RecipientID string `json:"recipient_id"`
	// EventKind 事件类型
	EventKind EventKind `json:"event_kind"`
	// Message 本地化的通知文案，可为空
	Message string `json:"message,omitempty"`
	// Metadata 渠道相关的上下文链接
	Metadata Metadata `json:"metadata,omitempty"`
	// CreatedAt 创建时间（毫秒时间戳）
	CreatedAt int64 `json:"created_at"`
	// Read 是否已读
	Read bool `json:"read"`
}

// Preference 通知偏好，按 (收件人, 事件类型, 渠道) 维度开关。
// 缺失记录一律按关闭处理（fail-closed）。
type Preference struct {
	RecipientID string    `json:"recipient_id"`
	EventKind   EventKind `json:"event_kind"`
	Channel     Channel   `json:"channel"`
	Enabled     bool      `json:"enabled"`
}

// EmailJob 邮件投递任务载荷，经任务队列异步消费。
// 队列语义为 at-least-once，同一载荷可能被重复投递。
type EmailJob struct {
	// To 收件地址
	To string `json:"to"`
	// Subject 本地化邮件主题
	Subject string `json:"subject"`
	// HTML 渲染后的邮件正文
	HTML string `json:"html"`
}

// EmailJobKind 返回事件类型对应的邮件任务队列名
func EmailJobKind(kind EventKind) string {
	switch kind {
	case EventInvitation:
		return "notification.email.invitation"
	case EventKicked:
		return "notification.email.kicked"
	case EventKickedAdmin:
		return "notification.email.kicked-admin"
	case EventRoleUpdated:
		return "notification.email.role-updated"
	case EventRoleUpdatedAdmin:
		return "notification.email.role-updated-admin"
	case EventIssueAssigned:
		return "notification.email.issue-assigned"
	case EventProjectDeleted:
		return "notification.email.project-deleted"
	default:
		return ""
	}
}

// EventKinds 返回全部事件类型
func EventKinds() []EventKind {
	return []EventKind{
		EventInvitation,
		EventKicked,
		EventKickedAdmin,
		EventRoleUpdated,
		EventRoleUpdatedAdmin,
		EventIssueAssigned,
		EventProjectDeleted,
	}
}

// ValidEventKind 校验事件类型是否属于封闭集合
func ValidEventKind(kind EventKind) bool {
	return EmailJobKind(kind) != ""
}
