package mailer

import (
	"fmt"
	"strings"
	"sync"
)

// Template defines a reusable mail template. Subject and bodies use {{key}}
// placeholders.
type Template struct {
	ID      string
	Subject string
	Text    string
	HTML    string
}

// TemplateEngine manages mail templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// TemplateMeetingInvite is the built-in meeting invitation template.
const TemplateMeetingInvite = "meeting-invite"

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	e.templates[TemplateMeetingInvite] = &Template{
		ID:      TemplateMeetingInvite,
		Subject: "{{topic}}",
		Text: "You are invited to a meeting.\n\n" +
			"Topic: {{topic}}\n" +
			"Description: {{description}}\n" +
			"Time: {{time}}\n\n" +
			"Join Meeting: {{link}}\n\n" +
			"Looking forward to seeing you!",
		HTML: `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; border: 1px solid #e0e0e0; border-radius: 10px; overflow: hidden;">
  <div style="background-color: #0061ff; color: white; padding: 20px; text-align: center;">
    <h2 style="margin: 0;">Meeting Invitation</h2>
  </div>
  <div style="padding: 30px;">
    <p style="font-size: 16px; margin-bottom: 10px;"><strong>Topic:</strong> {{topic}}</p>
    <p style="font-size: 16px; margin-bottom: 10px;"><strong>Description:</strong> {{description}}</p>
    <p style="font-size: 16px; margin-bottom: 10px;"><strong>Time:</strong> {{time}}</p>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{link}}" target="_blank" style="background-color: #0061ff; color: white; text-decoration: none; padding: 12px 24px; font-size: 16px; border-radius: 6px; display: inline-block;">
        Join Meeting
      </a>
    </div>
    <p style="font-size: 14px; color: #555;">If the button does not work, copy and paste this link into your browser:</p>
    <p style="font-size: 14px; color: #0061ff; word-break: break-word;">{{link}}</p>
  </div>
  <div style="background-color: #f0f0f0; padding: 15px; text-align: center; font-size: 12px; color: #888;">
    This invitation was sent from the clinic's video portal (no-reply).
  </div>
</div>`,
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, text, html string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	text = t.Text
	html = t.HTML
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		text = strings.ReplaceAll(text, placeholder, v)
		html = strings.ReplaceAll(html, placeholder, v)
	}
	return subject, text, html, nil
}
