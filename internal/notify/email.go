package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/example/gym-sniper/internal/logger"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// MailSender matches smtp.SendMail.
type MailSender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends a plain text mail for each outcome.
type Email struct {
	cfg  EmailConfig
	send MailSender
	log  logger.Logger
}

// NewEmail returns an Email notifier. A nil send uses smtp.SendMail, which
// upgrades to STARTTLS when the server offers it.
func NewEmail(cfg EmailConfig, send MailSender, l logger.Logger) *Email {
	if send == nil {
		send = smtp.SendMail
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: send, log: logger.OrNop(l)}
}

func (e *Email) NotifySuccess(_ context.Context, n Notice) {
	subject := "Gym Booking Confirmed: " + n.Name
	body := fmt.Sprintf("Your gym class has been successfully booked!\n\n"+
		"Class: %s\nTime: %s\nTrainer: %s\n\nSee you there!",
		n.Name, n.Time.Format(TimeLayout), n.TrainerOrDefault())
	if err := e.deliver(subject, body); err != nil {
		e.log.Error("failed to send success email: %v", err)
		return
	}
	e.log.Info("booking confirmation email sent")
}

func (e *Email) NotifyFailure(_ context.Context, n Notice, reason string) {
	subject := "Gym Booking Failed: " + n.Name
	body := fmt.Sprintf("Failed to book your gym class.\n\n"+
		"Class: %s\nTime: %s\nTrainer: %s\n\nReason: %s\n\n"+
		"You may want to try booking manually or check the waitlist.",
		n.Name, n.Time.Format(TimeLayout), n.TrainerOrDefault(), reason)
	if err := e.deliver(subject, body); err != nil {
		e.log.Error("failed to send failure email: %v", err)
		return
	}
	e.log.Info("booking failure email sent")
}

func (e *Email) deliver(subject, body string) error {
	if e.cfg.Server == "" || e.cfg.To == "" {
		return fmt.Errorf("email: server and recipient are required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Server)
	}
	addr := net.JoinHostPort(e.cfg.Server, strconv.Itoa(e.cfg.Port))
	if err := e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
