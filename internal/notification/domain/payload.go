package domain

// Texts 调用方注入的本地化文案提供者。
// i18n 消息表在本子系统之外维护，这里只调用渲染函数，产出不透明的本地化字符串。
type Texts struct {
	// Subject 邮件主题
	Subject string
	// Body 邮件正文渲染函数，arg 为解析出的项目名或议题标题
	Body func(arg string) string
	// Message 推送文案渲染函数
	Message func(arg string) string
}

// Payload 事件载荷联合类型。由触发方构造，经分发器原样传给各渠道服务，
// 渠道服务只取自己需要的字段。
type Payload interface {
	Kind() EventKind
}

// InvitationPayload 受邀加入项目
type InvitationPayload struct {
	ProjectID string
	Texts     Texts
}

// Kind 实现 Payload
func (InvitationPayload) Kind() EventKind { return EventInvitation }

// KickedPayload 被移出项目
type KickedPayload struct {
	ProjectID string
	Texts     Texts
}

// Kind 实现 Payload
func (KickedPayload) Kind() EventKind { return EventKicked }

// KickedAdminPayload 管理员视角：某成员被移出项目
type KickedAdminPayload struct {
	ProjectID       string
	MemberAccountID string
	Texts           Texts
}

// Kind 实现 Payload
func (KickedAdminPayload) Kind() EventKind { return EventKickedAdmin }

// RoleUpdatedPayload 角色变更
type RoleUpdatedPayload struct {
	ProjectID string
	NewRole   string
	Texts     Texts
}

// Kind 实现 Payload
func (RoleUpdatedPayload) Kind() EventKind { return EventRoleUpdated }

// RoleUpdatedAdminPayload 管理员视角：某成员角色变更
type RoleUpdatedAdminPayload struct {
	ProjectID       string
	MemberAccountID string
	NewRole         string
	Texts           Texts
}

// Kind 实现 Payload
func (RoleUpdatedAdminPayload) Kind() EventKind { return EventRoleUpdatedAdmin }

// IssueAssignedPayload 议题被指派
type IssueAssignedPayload struct {
	IssueID string
	Texts   Texts
}

// Kind 实现 Payload
func (IssueAssignedPayload) Kind() EventKind { return EventIssueAssigned }

// ProjectDeletedPayload 项目被删除。项目记录此时已不存在，名称由触发方直接携带。
type ProjectDeletedPayload struct {
	ProjectName string
	Texts       Texts
}

// Kind 实现 Payload
func (ProjectDeletedPayload) Kind() EventKind { return EventProjectDeleted }
