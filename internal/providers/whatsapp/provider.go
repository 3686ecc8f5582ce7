package whatsapp

import (
	"context"
	"errors"
	"strings"
)

// Instance is a company's Evolution API connection, resolved from its credentials.
type Instance struct {
	URL    string
	Name   string
	APIKey string
}

func (i Instance) Validate() error {
	if strings.TrimSpace(i.URL) == "" || strings.TrimSpace(i.Name) == "" || strings.TrimSpace(i.APIKey) == "" {
		return ErrInvalidInstance
	}
	return nil
}

type Message struct {
	Number string
	Text   string
}

// Receipt is what the provider answered for an accepted message.
type Receipt struct {
	MessageID string
	Status    string
	Raw       string
}

type Provider interface {
	SendText(ctx context.Context, instance Instance, msg Message) (Receipt, error)
}

var (
	ErrInvalidInstance = errors.New("invalid_whatsapp_instance")
	ErrInvalidNumber   = errors.New("invalid_phone_number")
)

// NormalizeNumber keeps ASCII digits only and prefixes the Brazilian country code when missing.
func NormalizeNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		digits = "55" + digits
	case strings.HasPrefix(digits, "55") && (len(digits) == 12 || len(digits) == 13):
	default:
		return "", ErrInvalidNumber
	}
	return digits, nil
}
