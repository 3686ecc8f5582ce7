package service

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
)

const dueDateLayout = "02/01/2006"

// MessageData is the set of fields available to message templates.
type MessageData struct {
	CompanyName string
	ClientName  string
	Amount      string
	DueDate     string
	CheckoutURL string
	Message     string
}

// renderer caches parsed templates by their source text so hot-reloaded edits take effect
// on the next render without reparsing unchanged ones.
type renderer struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

func newRenderer() *renderer {
	return &renderer{cache: map[string]*template.Template{}}
}

func (r *renderer) render(templates map[string]string, eventType domain.EventType, data MessageData) (string, error) {
	source, ok := templates[string(eventType)]
	if !ok || strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("no template for %s: %w", eventType, domain.ErrInvalidEventType)
	}

	tmpl, err := r.parse(source)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", eventType, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", eventType, err)
	}
	body := strings.TrimSpace(b.String())
	if body == "" {
		return "", domain.ErrInvalidMessage
	}
	return body, nil
}

func (r *renderer) parse(source string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.cache[source]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("message").Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, err
	}
	r.cache[source] = tmpl
	return tmpl, nil
}
