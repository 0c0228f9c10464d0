package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/RAVBLACK/StrawHats/internal/config"
)

// SMTPMessenger sends mail over implicit TLS (SMTPS). The account password
// is read from the environment variable named in the config on every send,
// so credential rotation needs no restart.
type SMTPMessenger struct {
	cfg config.SMTPConfig
}

func NewSMTPMessenger(cfg config.SMTPConfig) *SMTPMessenger {
	return &SMTPMessenger{cfg: cfg}
}

func (m *SMTPMessenger) Send(ctx context.Context, subject, body string) error {
	password := os.Getenv(m.cfg.PasswordEnv)
	if password == "" {
		return fmt.Errorf("smtp password not set in environment variable %s", m.cfg.PasswordEnv)
	}

	addr := net.JoinHostPort(m.cfg.Server, fmt.Sprintf("%d", m.cfg.Port))

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{ServerName: m.cfg.Server},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, m.cfg.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.cfg.FromAddress, password, m.cfg.Server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(m.cfg.FromAddress); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.cfg.ToAddress); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(m.message(subject, body))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func (m *SMTPMessenger) message(subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", m.cfg.ToAddress)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}
