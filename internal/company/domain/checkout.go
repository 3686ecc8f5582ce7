package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

// NormalizeDomain strips scheme, whitespace and slashes so a stored custom domain is a bare host.
func NormalizeDomain(value string) string {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			value = value[len(scheme):]
			break
		}
	}
	return strings.Trim(value, "/ ")
}

// CheckoutBaseURL returns https://{custom_domain} when the company has one, otherwise the
// default application URL. The result never ends with a slash.
func CheckoutBaseURL(company *Company, defaultURL string) string {
	if company != nil && company.CustomDomain != nil {
		if host := NormalizeDomain(*company.CustomDomain); host != "" {
			return "https://" + host
		}
	}
	return strings.TrimRight(strings.TrimSpace(defaultURL), "/")
}

func CheckoutURL(baseURL string, paymentID snowflake.ID) string {
	return strings.TrimRight(baseURL, "/") + "/checkout/" + paymentID.String()
}
