// Package email delivers transactional mail such as invitation notices.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/tidehub/workdesk/internal/config"
	"go.uber.org/zap"
)

// Message is a single outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Provider sends mail. Implementations must be safe for concurrent use.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type smtpProvider struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

// NewSMTP returns a Provider backed by a plain SMTP relay.
func NewSMTP(cfg config.Config) Provider {
	return &smtpProvider{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		host:     cfg.SMTPHost,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (p *smtpProvider) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}
	return smtp.SendMail(p.addr, auth, p.from, []string{msg.To}, []byte(b.String()))
}

type noopProvider struct {
	logger *zap.Logger
}

// NewNoop returns a Provider that logs instead of sending. Used when no SMTP
// relay is configured.
func NewNoop(logger *zap.Logger) Provider {
	return &noopProvider{logger: logger}
}

func (p *noopProvider) Send(_ context.Context, msg Message) error {
	p.logger.Info("email delivery skipped, no smtp relay configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// New picks the SMTP provider when a relay host is configured, the no-op
// provider otherwise.
func New(cfg config.Config, logger *zap.Logger) Provider {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return NewNoop(logger)
	}
	return NewSMTP(cfg)
}
