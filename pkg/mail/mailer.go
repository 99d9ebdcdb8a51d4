package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// ErrRejected marks permanent (5xx) replies; resending the same message will not help.
var ErrRejected = errors.New("smtp: message rejected")

const defaultSMTPTimeout = 10 * time.Second

// Message is an outbound HTML email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// FromName is the display name paired with From in the From header.
	FromName string
	UseTLS   bool
	Timeout  time.Duration
}

type smtpClient interface {
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
	Auth(smtp.Auth) error
}

type dialFunc func(ctx context.Context, cfg SMTPSettings) (smtpClient, error)

type smtpMailer struct {
	cfg  SMTPSettings
	dial dialFunc
	now  func() time.Time
}

// NewSMTPMailer returns a Mailer that delivers through the configured relay.
// A disabled configuration yields a mailer whose Send returns ErrSMTPDisabled.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if cfg.Port <= 0 {
			return nil, errors.New("smtp: port is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &smtpMailer{cfg: cfg, dial: dialSMTP, now: time.Now}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	from, err := m.sender(msg.From)
	if err != nil {
		return err
	}
	to, err := parseRecipients(msg.To)
	if err != nil {
		return err
	}

	payload, err := compose(from, to, msg, m.now())
	if err != nil {
		return err
	}

	client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if user := strings.TrimSpace(m.cfg.Username); user != "" {
		if err := client.Auth(smtp.PlainAuth("", user, m.cfg.Password, m.cfg.Host)); err != nil {
			return classify("auth", err)
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return classify("mail from", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return classify("rcpt to "+rcpt.Address, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := wc.Write(payload); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return classify("end data", err)
	}
	return client.Quit()
}

func (m *smtpMailer) sender(override string) (*mail.Address, error) {
	raw := strings.TrimSpace(override)
	if raw == "" {
		raw = strings.TrimSpace(m.cfg.From)
	}
	if raw == "" {
		return nil, errors.New("smtp: sender address is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if addr.Name == "" {
		addr.Name = m.cfg.FromName
	}
	return addr, nil
}

// parseRecipients drops blanks and duplicates, keeping first-seen order.
func parseRecipients(raw []string) ([]*mail.Address, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]*mail.Address, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, err := mail.ParseAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("smtp: invalid recipient address %q: %w", entry, err)
		}
		key := strings.ToLower(addr.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, errors.New("smtp: at least one recipient is required")
	}
	return out, nil
}

func compose(from *mail.Address, to []*mail.Address, msg Message, now time.Time) ([]byte, error) {
	recipients := make([]string, len(to))
	for i, addr := range to {
		recipients[i] = addr.String()
	}

	domain := "localhost"
	if _, host, ok := strings.Cut(from.Address, "@"); ok && host != "" {
		domain = host
	}

	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key + ": " + value + "\r\n")
	}
	header("From", from.String())
	header("To", strings.Join(recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", strings.Join(strings.Fields(msg.Subject), " ")))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+domain+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTML)); err != nil {
		return nil, fmt.Errorf("smtp: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("smtp: encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func classify(stage string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return fmt.Errorf("smtp: %s: %w: %w", stage, ErrRejected, err)
	}
	return fmt.Errorf("smtp: %s: %w", stage, err)
}

// dialSMTP connects with implicit TLS when UseTLS is set, otherwise upgrades
// via STARTTLS whenever the server offers it.
func dialSMTP(ctx context.Context, cfg SMTPSettings) (smtpClient, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: cfg.Timeout}, Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", address)
	} else {
		dialer := &net.Dialer{Timeout: cfg.Timeout}
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: handshake: %w", err)
	}
	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}
	return client, nil
}
