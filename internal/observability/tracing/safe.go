package tracing

import (
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"authorization": {},
	"access_token":  {},
	"api_token":     {},
	"apikey":        {},
	"phone_number":  {},
	"document":      {},
}

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	digitsPattern = regexp.MustCompile(`\d{10,}`)
)

// SafeAttributes removes attributes that could carry credentials or personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attribute.Key(strings.ToLower(string(attr.Key)))]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns a copy of err with tokens and long digit runs (phones, CPF/CNPJ) redacted.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := bearerPattern.ReplaceAllString(err.Error(), "Bearer [redacted]")
	msg = digitsPattern.ReplaceAllString(msg, "[redacted]")
	return errors.New(msg)
}
