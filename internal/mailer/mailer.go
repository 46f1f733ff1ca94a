// Package mailer sends outbound notification mail over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wneessen/go-mail"

	"memberverify/internal/platform/config"
)

// ErrNoRecipient is returned for messages without a To address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Message is one outbound mail. HTML is optional; Text is always sent.
type Message struct {
	To      string
	Bcc     []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers outbound mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through a single SMTP relay.
type SMTPMailer struct {
	cfg  config.MailConfig
	opts []mail.Option
}

func NewSMTP(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return &SMTPMailer{cfg: cfg, opts: opts}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := m.build(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.cfg.Host, m.opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}
	out := mail.NewMsg()
	if m.cfg.FromName != "" {
		if err := out.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	if len(msg.Bcc) > 0 {
		if err := out.Bcc(msg.Bcc...); err != nil {
			return nil, fmt.Errorf("setting bcc address: %w", err)
		}
	}
	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = m.cfg.ReplyTo
	}
	if replyTo != "" {
		if err := out.ReplyTo(replyTo); err != nil {
			return nil, fmt.Errorf("setting reply-to address: %w", err)
		}
	}

	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return out, nil
}

// Outbox records messages instead of sending them. Used for local runs
// without SMTP and in tests.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// FailWith makes subsequent sends return err.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}
