package email

import (
	"strings"
	"unicode"
)

// GreetingName returns the first word of fullName, or a name derived from the
// address when fullName is blank.
func GreetingName(fullName, address string) string {
	if fields := strings.Fields(fullName); len(fields) > 0 {
		return fields[0]
	}
	first, _ := DeriveNameFromEmail(address)
	return first
}

func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Member", "Member"
	}

	first := capitalize(strings.TrimRight(parts[0], "0123456789"))
	last := "Member"
	if len(parts) > 1 {
		last = capitalize(strings.TrimRight(parts[len(parts)-1], "0123456789"))
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
