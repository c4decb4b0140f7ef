package builder

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 /()-]{5,}$`)
)

// NormalizeContact turns a human-written contact string into a canonical
// scheme-prefixed link: a messaging deep link for handles, mailto: for
// addresses, tel: for numbers, and a https URL otherwise. It returns ""
// when the input cannot be interpreted as any contact method.
func NormalizeContact(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(c, "@"):
		return "https://t.me/" + strings.TrimPrefix(c, "@")
	case strings.HasPrefix(c, "mailto:"), strings.HasPrefix(c, "tel:"), strings.HasPrefix(c, "tg://"):
		return c
	case emailRe.MatchString(c):
		return "mailto:" + c
	case phoneRe.MatchString(c):
		return "tel:" + stripPhone(c)
	case strings.Contains(c, "://"):
		return c
	case strings.HasPrefix(c, "t.me/"), strings.HasPrefix(c, "www."):
		return "https://" + c
	case strings.Contains(c, ".") && !strings.ContainsAny(c, " \t"):
		// Bare domain or path
		return "https://" + c
	}
	return ""
}

func stripPhone(c string) string {
	var b strings.Builder
	for _, r := range c {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
