// Package http 通知子系统的 HTTP/WebSocket 接入层
package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wyfcoding/issuetracking/internal/notification/application"
	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/realtime"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/registry"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// HTTP 处理器
// 负责处理与通知相关的 HTTP 请求和 WebSocket 接入
type NotificationHandler struct {
	app      *application.NotificationService
	hub      *realtime.Hub
	registry *registry.ConnectionRegistry
	upgrader websocket.Upgrader
}

// 创建 HTTP 处理器实例
func NewNotificationHandler(app *application.NotificationService, hub *realtime.Hub, reg *registry.ConnectionRegistry) *NotificationHandler {
	return &NotificationHandler{
		app:      app,
		hub:      hub,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域校验由网关完成
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// 注册路由
// 将处理器方法绑定到 Gin 路由引擎
func (h *NotificationHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/notifications")
	{
		api.GET("", h.GetHistory)
		api.GET("/unread", h.GetUnread)
		api.PUT("/:id/read", h.MarkRead)
		api.PUT("/read-all", h.MarkAllRead)
		api.GET("/settings", h.ListPreferences)
		api.PUT("/settings", h.UpdatePreference)
	}

	internal := router.Group("/api/v1/internal")
	{
		internal.POST("/notify", h.Notify)
	}

	router.GET("/ws", h.Websocket)
}

// GetHistory 分页获取通知历史
func (h *NotificationHandler) GetHistory(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	notifications, total, err := h.app.GetHistory(c.Request.Context(), recipientID, limit, offset)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get notification history", "recipient_id", recipientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total, "notifications": notifications})
}

// GetUnread 获取全部未读通知
func (h *NotificationHandler) GetUnread(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	notifications, err := h.app.GetUnread(c.Request.Context(), recipientID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get unread notifications", "recipient_id", recipientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead 标记单条通知已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.app.MarkRead(c.Request.Context(), recipientID, id); err != nil {
		logger.Error(c.Request.Context(), "Failed to mark notification read", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead 标记全部通知已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	if err := h.app.MarkAllRead(c.Request.Context(), recipientID); err != nil {
		logger.Error(c.Request.Context(), "Failed to mark all notifications read", "recipient_id", recipientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListPreferences 获取收件人的全部偏好记录
func (h *NotificationHandler) ListPreferences(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	prefs, err := h.app.ListPreferences(c.Request.Context(), recipientID)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list preferences", "recipient_id", recipientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferenceRequest 更新偏好请求
type UpdatePreferenceRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	EventKind   string `json:"event_kind" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
	Enabled     *bool  `json:"enabled" binding:"required"`
}

// UpdatePreference 更新通知偏好开关
func (h *NotificationHandler) UpdatePreference(c *gin.Context) {
	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref := &domain.Preference{
		RecipientID: req.RecipientID,
		EventKind:   domain.EventKind(req.EventKind),
		Channel:     domain.Channel(req.Channel),
		Enabled:     *req.Enabled,
	}
	if err := h.app.UpdatePreference(c.Request.Context(), pref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TextsRequest 调用方注入的本地化文案。
// 模板中的 {name} 占位符在投递时替换为解析出的项目名或议题标题。
type TextsRequest struct {
	Subject         string `json:"subject"`
	BodyTemplate    string `json:"body_template"`
	MessageTemplate string `json:"message_template"`
}

// NotifyRequest 内部通知触发请求
type NotifyRequest struct {
	Recipient       string       `json:"recipient" binding:"required"`
	EventKind       string       `json:"event_kind" binding:"required"`
	ProjectID       string       `json:"project_id"`
	ProjectName     string       `json:"project_name"`
	IssueID         string       `json:"issue_id"`
	MemberAccountID string       `json:"member_account_id"`
	NewRole         string       `json:"new_role"`
	Texts           TextsRequest `json:"texts" binding:"required"`
}

// Notify 接收业务服务触发的领域事件并异步分发。
// 请求在分发入队后立即返回，不等待任何渠道的投递结果。
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := buildPayload(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.app.Dispatch(c.Request.Context(), req.Recipient, payload); err != nil {
		logger.Error(c.Request.Context(), "Failed to dispatch notification", "event_kind", req.EventKind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Websocket 将客户端连接升级为 WebSocket 并注册到连接注册表。
// 同一收件人的新连接覆盖旧映射，连接关闭时注销。
func (h *NotificationHandler) Websocket(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "recipient_id", recipientID, "error", err)
		return
	}

	connID := h.hub.Add(ws)
	ctx := c.Request.Context()
	if err := h.registry.Bind(ctx, recipientID, connID); err != nil {
		logger.Error(ctx, "websocket bind failed", "recipient_id", recipientID, "error", err)
		h.hub.Remove(connID)
		return
	}

	logger.Info(ctx, "websocket connected", "recipient_id", recipientID, "conn_id", connID)

	defer func() {
		_ = h.registry.Unbind(ctx, recipientID, connID)
		h.hub.Remove(connID)
		logger.Info(ctx, "websocket disconnected", "recipient_id", recipientID, "conn_id", connID)
	}()

	ws.SetPongHandler(func(string) error {
		return h.registry.Touch(ctx, recipientID)
	})
	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Minute))

	// 服务端单向推送，入站帧只用于保活
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(10 * time.Minute))
		if err := h.registry.Touch(ctx, recipientID); err != nil {
			logger.Warn(ctx, "registry touch failed", "recipient_id", recipientID, "error", err)
		}
	}
}

func buildPayload(req *NotifyRequest) (domain.Payload, error) {
	texts := domain.Texts{
		Subject: req.Texts.Subject,
		Body:    renderer(req.Texts.BodyTemplate),
		Message: renderer(req.Texts.MessageTemplate),
	}

	switch domain.EventKind(req.EventKind) {
	case domain.EventInvitation:
		if req.ProjectID == "" {
			return nil, errMissing("project_id")
		}
		return domain.InvitationPayload{ProjectID: req.ProjectID, Texts: texts}, nil
	case domain.EventKicked:
		if req.ProjectID == "" {
			return nil, errMissing("project_id")
		}
		return domain.KickedPayload{ProjectID: req.ProjectID, Texts: texts}, nil
	case domain.EventKickedAdmin:
		if req.ProjectID == "" {
			return nil, errMissing("project_id")
		}
		return domain.KickedAdminPayload{ProjectID: req.ProjectID, MemberAccountID: req.MemberAccountID, Texts: texts}, nil
	case domain.EventRoleUpdated:
		if req.ProjectID == "" {
			return nil, errMissing("project_id")
		}
		return domain.RoleUpdatedPayload{ProjectID: req.ProjectID, NewRole: req.NewRole, Texts: texts}, nil
	case domain.EventRoleUpdatedAdmin:
		if req.ProjectID == "" {
			return nil, errMissing("project_id")
		}
		return domain.RoleUpdatedAdminPayload{ProjectID: req.ProjectID, MemberAccountID: req.MemberAccountID, NewRole: req.NewRole, Texts: texts}, nil
	case domain.EventIssueAssigned:
		if req.IssueID == "" {
			return nil, errMissing("issue_id")
		}
		return domain.IssueAssignedPayload{IssueID: req.IssueID, Texts: texts}, nil
	case domain.EventProjectDeleted:
		if req.ProjectName == "" {
			return nil, errMissing("project_name")
		}
		return domain.ProjectDeletedPayload{ProjectName: req.ProjectName, Texts: texts}, nil
	default:
		return nil, &unknownKindError{kind: req.EventKind}
	}
}

func renderer(template string) func(string) string {
	return func(arg string) string {
		return strings.ReplaceAll(template, "{name}", arg)
	}
}

type unknownKindError struct{ kind string }

func (e *unknownKindError) Error() string { return "unknown event kind " + strconv.Quote(e.kind) }

type missingFieldError struct{ field string }

func (e *missingFieldError) Error() string { return e.field + " is required" }

func errMissing(field string) error { return &missingFieldError{field: field} }
