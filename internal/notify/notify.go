// Package notify delivers queued notifications. Services write rows to the
// outbox inside their transactions; the Dispatcher sends them afterwards.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/tripdesk/backend/internal/models"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through a plain SMTP relay, dialing per message.
type SMTPSender struct {
	Config SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		Config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.Config.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email (log only)")
	return nil
}

// RenderLeadAssignment builds the email sent to a rep when a lead is assigned.
func RenderLeadAssignment(p models.LeadAssignmentPayload, baseURL string) Message {
	name := p.SalesRepName
	if name == "" {
		name = "there"
	}
	leadName := p.LeadName
	if leadName == "" {
		leadName = p.LeadEmail
	}
	link := strings.TrimRight(baseURL, "/") + "/leads/" + p.LeadID

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "A lead has been assigned to you (%s assignment).\n\n", p.AssignmentMode)
	fmt.Fprintf(&b, "Lead: %s\n", leadName)
	if p.Destination != "" {
		fmt.Fprintf(&b, "Destination: %s\n", p.Destination)
	}
	if !p.TravelDate.IsZero() {
		fmt.Fprintf(&b, "Travel date: %s\n", p.TravelDate.Format("2006-01-02"))
	}
	if p.AssignedBy != "" {
		fmt.Fprintf(&b, "Assigned by: %s\n", p.AssignedBy)
	}
	fmt.Fprintf(&b, "\nOpen the lead: %s\n", link)

	return Message{
		To:      p.SalesRepEmail,
		Subject: fmt.Sprintf("New lead assigned: %s", leadName),
		Text:    b.String(),
	}
}

// Render turns a stored notification into a message.
func Render(n models.Notification, baseURL string) (Message, error) {
	switch n.Kind {
	case models.NotificationLeadAssigned:
		var p models.LeadAssignmentPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", n.Kind, err)
		}
		msg := RenderLeadAssignment(p, baseURL)
		if msg.To == "" {
			msg.To = n.Recipient
		}
		return msg, nil
	default:
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
