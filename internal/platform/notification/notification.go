// Package notification delivers appointment messages to patients over
// WhatsApp or email, with {{placeholder}} template rendering. Delivery is
// best-effort: callers fire and forget, failures are logged.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Channel is the delivery channel for a notification.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// WhatsAppSender sends a WhatsApp message to a phone number.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, phone, body string) error
}

// EmailSender sends an email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
	Channel Channel
}

// TemplateEngine stores templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine returns an engine with the clinic's built-in templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "appointment-scheduled",
			Subject: "Consulta agendada",
			Body:    "Olá {{patient}}, sua consulta foi agendada para {{date}} às {{time}} com {{practitioner}}.",
			Channel: ChannelWhatsApp,
		},
		{
			ID:      "appointment-rescheduled",
			Subject: "Consulta remarcada",
			Body:    "Olá {{patient}}, sua consulta foi remarcada para {{date}} às {{time}}.",
			Channel: ChannelWhatsApp,
		},
		{
			ID:      "appointment-cancelled",
			Subject: "Consulta cancelada",
			Body:    "Olá {{patient}}, sua consulta de {{date}} às {{time}} foi cancelada. Entre em contato para reagendar.",
			Channel: ChannelWhatsApp,
		},
		{
			ID:      "appointment-reminder",
			Subject: "Lembrete de consulta",
			Body:    "Olá {{patient}}, lembramos da sua consulta amanhã, {{date}} às {{time}}.",
			Channel: ChannelWhatsApp,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement on the template's subject and body.
// Keys present in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

func (e *TemplateEngine) channel(templateID string) Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Channel
	}
	return ChannelWhatsApp
}

// Message addresses one rendered notification.
type Message struct {
	TemplateID string
	Phone      string
	Email      string
	Data       map[string]string
}

// Notifier renders and dispatches messages. Notify never returns an error;
// a consulta must not fail because a message did.
type Notifier struct {
	whatsapp  WhatsAppSender
	email     EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
	enabled   bool
}

func NewNotifier(wa WhatsAppSender, email EmailSender, tpl *TemplateEngine, logger zerolog.Logger, enabled bool) *Notifier {
	return &Notifier{
		whatsapp:  wa,
		email:     email,
		templates: tpl,
		logger:    logger.With().Str("component", "notification").Logger(),
		enabled:   enabled,
	}
}

// Notify renders the template and sends it on the template's channel.
func (n *Notifier) Notify(ctx context.Context, msg Message) {
	if !n.enabled {
		return
	}
	subject, body, err := n.templates.Render(msg.TemplateID, msg.Data)
	if err != nil {
		n.logger.Warn().Err(err).Str("template", msg.TemplateID).Msg("notification not rendered")
		return
	}

	switch n.templates.channel(msg.TemplateID) {
	case ChannelEmail:
		if msg.Email == "" {
			return
		}
		err = n.email.SendEmail(ctx, msg.Email, subject, body)
	default:
		if msg.Phone == "" {
			return
		}
		err = n.whatsapp.SendWhatsApp(ctx, msg.Phone, body)
	}
	if err != nil {
		n.logger.Warn().Err(err).
			Str("template", msg.TemplateID).
			Msg("notification delivery failed")
	}
}

// LogSender writes messages to the log instead of a provider. It is the
// default sender in development and when no provider is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendWhatsApp(_ context.Context, phone, body string) error {
	s.Logger.Info().Str("channel", "whatsapp").Str("to", phone).Str("body", body).Msg("notification")
	return nil
}

func (s LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("channel", "email").Str("to", to).Str("subject", subject).Msg("notification")
	return nil
}
