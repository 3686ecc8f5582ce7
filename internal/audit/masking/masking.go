package masking

import "strings"

const maskToken = "****"

// sensitiveKeys name metadata fields that never reach audit rows in clear text.
var sensitiveKeys = map[string]struct{}{
	"access_token":  {},
	"api_token":     {},
	"api_key":       {},
	"apikey":        {},
	"client_secret": {},
	"secret":        {},
	"password":      {},
	"certificate":   {},
	"private_key":   {},
	"webhook_token": {},
	"authorization": {},
	"document":      {},
	"phone":         {},
	"phone_number":  {},
}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskJSON returns a copy of the input with every string value masked.
func MaskJSON(input map[string]any) map[string]any {
	return walk(input, func(string) bool { return true })
}

// MaskSensitive returns a copy of the input with only sensitive keys masked.
func MaskSensitive(input map[string]any) map[string]any {
	return walk(input, IsSensitiveKey)
}

func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func walk(input map[string]any, mask func(string) bool) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		out[trimmedKey] = maskValue(value, mask(trimmedKey), mask)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func maskValue(value any, maskStrings bool, mask func(string) bool) any {
	switch cast := value.(type) {
	case string:
		if maskStrings {
			return MaskSecret(cast)
		}
		return cast
	case map[string]any:
		if maskStrings {
			return MaskJSON(cast)
		}
		return walk(cast, mask)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item, maskStrings, mask))
		}
		return out
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
