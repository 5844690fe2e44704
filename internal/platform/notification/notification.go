// Package notification renders message templates and delivers them by e-mail.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery states reported back to callers.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is a single outbound message and its delivery outcome.
type Notification struct {
	ID         string     `json:"id"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	Body       string     `json:"-"`
	TemplateID string     `json:"templateId,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template IDs used by the appointment workflow.
const (
	TemplateAppointmentCancelled = "appointment-cancelled"
	TemplateAppointmentConfirmed = "appointment-confirmed"
	TemplatePaymentReceived      = "payment-received"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine holds templates and performs {{key}} substitution.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateAppointmentCancelled,
			Subject: "Your appointment on {{date}} has been cancelled",
			Body: "Dear {{patient_name}},\n\nYour {{specialty}} appointment with {{doctor_name}} on {{date}} at {{time}} has been cancelled." +
				"{{reason_line}}\n\nPlease book a new appointment at your convenience.\n\nMediBook",
		},
		{
			ID:      TemplateAppointmentConfirmed,
			Subject: "Your appointment on {{date}} is confirmed",
			Body:    "Dear {{patient_name}},\n\n{{doctor_name}} has confirmed your {{specialty}} appointment on {{date}} at {{time}}.\n\nMediBook",
		},
		{
			ID:      TemplatePaymentReceived,
			Subject: "Payment received",
			Body:    "Dear {{patient_name}},\n\nWe received your payment of {{amount}} {{currency}} for the appointment on {{date}}.\n\nMediBook",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without data are
// removed so partially filled templates never leak braces to recipients.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return stripPlaceholders(subject), stripPlaceholders(body), nil
}

func stripPlaceholders(s string) string {
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return s
		}
		s = s[:start] + s[start+end+2:]
	}
}

// Manager renders templates and sends them through an EmailSender.
type Manager struct {
	email     EmailSender
	templates *TemplateEngine
	now       func() time.Time
}

func NewManager(email EmailSender, tpl *TemplateEngine) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{email: email, templates: tpl, now: time.Now}
}

// ErrNoRecipient is returned when there is no address to deliver to.
var ErrNoRecipient = errors.New("no recipient address")

// SendFromTemplate renders and sends a message. The returned Notification is
// always non-nil and records the outcome, including on failure.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	n := &Notification{
		ID:         uuid.New().String(),
		Recipient:  recipient,
		TemplateID: templateID,
		CreatedAt:  m.now().UTC(),
	}

	if strings.TrimSpace(recipient) == "" {
		n.Status = StatusSkipped
		n.Error = ErrNoRecipient.Error()
		return n, ErrNoRecipient
	}

	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return n, fmt.Errorf("render template: %w", err)
	}
	n.Subject, n.Body = subject, body

	if err := m.email.SendEmail(ctx, recipient, subject, body); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return n, fmt.Errorf("send email to %s: %w", recipient, err)
	}

	sentAt := m.now().UTC()
	n.Status = StatusSent
	n.SentAt = &sentAt
	return n, nil
}
