package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"sysadvisor/app/internal/config"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	Date    time.Time
}

// Bytes renders the message with CRLF line endings. A fresh Message-ID is
// generated on every call.
func (m *Message) Bytes() []byte {
	domain := "localhost"
	if at := strings.LastIndex(m.From, "@"); at >= 0 && at < len(m.From)-1 {
		domain = m.From[at+1:]
	}

	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", m.Date.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

// SMTPTransport delivers over SMTP with implicit TLS or, when offered,
// STARTTLS.
type SMTPTransport struct {
	Host        string
	Port        int
	Username    string
	Password    string
	SkipVerify  bool
	ImplicitTLS bool
}

// NewSMTPTransport builds a transport from mail settings. Port 465 uses
// implicit TLS.
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		Host:        strings.TrimSpace(cfg.Host),
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SkipVerify:  cfg.SkipVerify,
		ImplicitTLS: cfg.Port == 465,
	}
}

// Send performs one SMTP session. The context deadline bounds the whole
// exchange.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}

	addr := net.JoinHostPort(t.Host, fmt.Sprint(t.Port))
	c, stop, err := dialSMTP(ctx, addr, t.Host, t.ImplicitTLS, t.SkipVerify)
	if err != nil {
		return err
	}
	defer stop()
	defer c.Close()

	if ok, _ := c.Extension("AUTH"); ok && t.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", t.Username, t.Password, t.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(msg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		_ = w.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}
	return c.Quit()
}

// dialSMTP connects and reads the greeting. The connection is bounded by
// ctx from the moment it exists: its deadline is set and it is closed when
// ctx ends. The returned stop detaches that watcher.
func dialSMTP(ctx context.Context, addr, host string, implicitTLS, skipVerify bool) (*smtp.Client, func() bool, error) {
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify,
	}

	var (
		conn net.Conn
		err  error
	)
	if implicitTLS {
		// SMTPS, commonly port 465
		d := &tls.Dialer{Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, err
	}

	// smtp.Client has no context support; a deadline plus a watcher closing
	// the connection stand in for it.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, nil, err
	}

	// STARTTLS if supported
	if !implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				stop()
				_ = c.Close()
				return nil, nil, err
			}
		}
	}

	return c, stop, nil
}
