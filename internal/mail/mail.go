// Package mail sends HTML notification mail.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultFrom is the sender and carbon-copy address used when none is configured.
const DefaultFrom = "noreply@mixchat.ru"

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	CC       string
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if _, err := netmail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	if cfg.CC != "" {
		if _, err := netmail.ParseAddress(cfg.CC); err != nil {
			return nil, fmt.Errorf("mail: invalid cc address: %w", err)
		}
	}
	return &SMTPSender{cfg: cfg, now: time.Now}, nil
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Send delivers the message to to, copying the configured CC address.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	rcpt, err := netmail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	msg := s.buildMessage(rcpt.Address, subject, htmlBody)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", s.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	for _, addr := range s.recipients(rcpt.Address) {
		if err := c.Rcpt(addr); err != nil {
			return fmt.Errorf("mail: RCPT TO %s: %w", addr, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("mail: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: end body: %w", err)
	}
	return c.Quit()
}

func (s *SMTPSender) recipients(to string) []string {
	if s.cfg.CC == "" || strings.EqualFold(s.cfg.CC, to) {
		return []string{to}
	}
	return []string{to, s.cfg.CC}
}

func (s *SMTPSender) buildMessage(to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	header("From", s.cfg.From)
	header("To", to)
	if s.cfg.CC != "" {
		header("CC", s.cfg.CC)
	}
	header("Subject", mime.QEncoding.Encode("UTF-8", subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+domainOf(s.cfg.From)+">")
	header("MIME-Version", "1.0")
	header("Content-Type", "text/html; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(htmlBody, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

func domainOf(addr string) string {
	if _, domain, ok := strings.Cut(addr, "@"); ok {
		return domain
	}
	return "localhost"
}

// NopSender discards mail. Used when mail is disabled.
type NopSender struct {
	Log zerolog.Logger
}

// Send logs the message and returns nil.
func (n NopSender) Send(_ context.Context, to, subject, _ string) error {
	n.Log.Debug().Str("to", to).Str("subject", subject).Msg("Mail disabled, message dropped")
	return nil
}

// AsyncSender sends in the background and never reports delivery errors to
// the caller.
type AsyncSender struct {
	next    Sender
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// Async wraps next so Send returns immediately.
func Async(next Sender, log zerolog.Logger, timeout time.Duration) *AsyncSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncSender{next: next, log: log, timeout: timeout}
}

// Send queues the message. The caller's context only contributes its values;
// delivery continues after the caller returns.
func (a *AsyncSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Send(ctx, to, subject, htmlBody); err != nil {
			a.log.Warn().Err(err).Str("to", to).Msg("Mail delivery failed")
			return
		}
		a.log.Debug().Str("to", to).Msg("Mail delivered")
	}()
	return nil
}

// Wait blocks until queued messages have been attempted.
func (a *AsyncSender) Wait() {
	a.wg.Wait()
}
