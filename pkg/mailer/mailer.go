// Package mailer delivers session summaries over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan/alivia/internal/observability"
	"github.com/rs/zerolog"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Logger   zerolog.Logger

	// TLSConfig overrides the STARTTLS client config. Nil verifies the
	// relay certificate against Host.
	TLSConfig *tls.Config
}

// SMTPSender sends mail through an SMTP relay with STARTTLS and PLAIN auth.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender validates the transport configuration.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	observability.EnsureRegistered()

	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}

	return &SMTPSender{cfg: cfg}, nil
}

// Send delivers the message, honoring the context deadline for the dial.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid recipient address: %s", to)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := buildMessage(s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	err := s.deliver(ctx, addr, auth, to, msg)
	observability.RecordMailDelivery(err == nil)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Str("host", s.cfg.Host).Msg("Mail delivery failed")
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.cfg.Logger.Info().Msg("Summary mail delivered")
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, addr string, auth smtp.Auth, to string, msg []byte) error {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.starttlsConfig()); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

// starttlsConfig returns the TLS client config for the STARTTLS upgrade.
// The handshake needs the relay host as ServerName to verify its certificate.
func (s *SMTPSender) starttlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		return s.cfg.TLSConfig
	}
	return &tls.Config{ServerName: s.cfg.Host}
}

// buildMessage assembles an RFC 5322 message with a UTF-8 subject.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	return []byte(b.String())
}
