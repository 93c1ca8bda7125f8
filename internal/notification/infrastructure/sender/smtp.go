// Package sender 提供邮件发送端口的具体实现。
package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/config"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// SMTPSender 通过 SMTP 投递 HTML 邮件。
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
	host     string
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		host:     cfg.Host,
	}
}

var _ domain.EmailSender = (*SMTPSender)(nil)

// Send 实现 domain.EmailSender.Send
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, []byte(b.String())); err != nil {
		logger.Error(ctx, "smtp send failed", "to", to, "subject", subject, "error", err)
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	logger.Info(ctx, "email sent", "to", to, "subject", subject)
	return nil
}
