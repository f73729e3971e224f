package identity

import (
	"net/mail"
	"strings"
)

// NormalizePhone strips separators and keeps a leading +. Numbers outside
// 7..15 digits are rejected.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	plus := strings.HasPrefix(s, "+")
	digits := filterDigits(s)
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

// NormalizeNationalID uppercases the id and drops spaces, dots and dashes
// so "ab-123 45" and "AB12345" are the same key.
func NormalizeNationalID(raw string) string {
	repl := strings.NewReplacer(" ", "", "-", "", ".", "", "\t", "")
	return strings.ToUpper(repl.Replace(strings.TrimSpace(raw)))
}

// ValidEmail reports whether s parses as a bare address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
