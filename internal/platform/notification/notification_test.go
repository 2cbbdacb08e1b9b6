package notification

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type waCall struct {
	phone string
	body  string
}

type mockWhatsApp struct {
	mu    sync.Mutex
	calls []waCall
	err   error
}

func (m *mockWhatsApp) SendWhatsApp(_ context.Context, phone, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, waCall{phone: phone, body: body})
	return m.err
}

type emailCall struct {
	to      string
	subject string
	body    string
}

type mockEmail struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (m *mockEmail) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{to: to, subject: subject, body: body})
	return m.err
}

func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestRender_ReplacesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("appointment-scheduled", map[string]string{
		"patient":      "Maria Silva",
		"practitioner": "Dra. Costa",
		"date":         "02/09/2026",
		"time":         "14:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Maria Silva", "Dra. Costa", "02/09/2026", "14:30"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got %q", want, body)
		}
	}
	if strings.Contains(body, "{{") {
		t.Errorf("expected all placeholders replaced, got %q", body)
	}
}

func TestRender_MissingKeyLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("appointment-cancelled", map[string]string{"patient": "João"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{date}}") {
		t.Errorf("expected unreplaced {{date}} placeholder, got %q", body)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestNotify_SendsWhatsApp(t *testing.T) {
	wa := &mockWhatsApp{}
	n := NewNotifier(wa, &mockEmail{}, NewTemplateEngine(), quietLogger(), true)

	n.Notify(context.Background(), Message{
		TemplateID: "appointment-scheduled",
		Phone:      "+5511999990000",
		Data:       map[string]string{"patient": "Maria"},
	})

	if len(wa.calls) != 1 {
		t.Fatalf("expected 1 whatsapp send, got %d", len(wa.calls))
	}
	if wa.calls[0].phone != "+5511999990000" {
		t.Errorf("unexpected phone %q", wa.calls[0].phone)
	}
}

func TestNotify_EmailChannel(t *testing.T) {
	engine := NewTemplateEngine()
	engine.RegisterTemplate(Template{
		ID:      "revenue-report",
		Subject: "Relatório diário",
		Body:    "Receita de {{date}}: {{total}}",
		Channel: ChannelEmail,
	})
	email := &mockEmail{}
	n := NewNotifier(&mockWhatsApp{}, email, engine, quietLogger(), true)

	n.Notify(context.Background(), Message{
		TemplateID: "revenue-report",
		Email:      "admin@clinic.example",
		Data:       map[string]string{"date": "01/09/2026", "total": "R$ 170,50"},
	})

	if len(email.calls) != 1 {
		t.Fatalf("expected 1 email send, got %d", len(email.calls))
	}
	if !strings.Contains(email.calls[0].body, "R$ 170,50") {
		t.Errorf("unexpected body %q", email.calls[0].body)
	}
}

func TestNotify_SkipsWithoutRecipient(t *testing.T) {
	wa := &mockWhatsApp{}
	n := NewNotifier(wa, &mockEmail{}, NewTemplateEngine(), quietLogger(), true)

	n.Notify(context.Background(), Message{TemplateID: "appointment-scheduled"})

	if len(wa.calls) != 0 {
		t.Fatalf("expected no sends without a phone, got %d", len(wa.calls))
	}
}

func TestNotify_DisabledIsNoop(t *testing.T) {
	wa := &mockWhatsApp{}
	n := NewNotifier(wa, &mockEmail{}, NewTemplateEngine(), quietLogger(), false)

	n.Notify(context.Background(), Message{
		TemplateID: "appointment-scheduled",
		Phone:      "+5511999990000",
	})

	if len(wa.calls) != 0 {
		t.Fatalf("expected no sends when disabled, got %d", len(wa.calls))
	}
}

func TestNotify_SwallowsSenderError(t *testing.T) {
	wa := &mockWhatsApp{err: errors.New("provider down")}
	n := NewNotifier(wa, &mockEmail{}, NewTemplateEngine(), quietLogger(), true)

	// Must not panic or surface the error.
	n.Notify(context.Background(), Message{
		TemplateID: "appointment-reminder",
		Phone:      "+5511999990000",
	})

	if len(wa.calls) != 1 {
		t.Fatalf("expected the send to be attempted, got %d", len(wa.calls))
	}
}
