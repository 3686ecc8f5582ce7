package domain

import (
	"strconv"
	"strings"
)

// FormatBRL renders centavos as "R$ 1.234,56".
func FormatBRL(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	units := strconv.FormatInt(centavos/100, 10)
	cents := centavos % 100

	var grouped strings.Builder
	for i, digit := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	centsText := strconv.FormatInt(cents, 10)
	if cents < 10 {
		centsText = "0" + centsText
	}
	return sign + "R$ " + grouped.String() + "," + centsText
}
