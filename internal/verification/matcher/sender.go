package matcher

import (
	"net/mail"
	"strings"
)

// Sender is a corporate sender address decomposed into name parts.
type Sender struct {
	Address   string
	LocalPart string
	FirstName string
	LastName  string
}

// ParseSender accepts a From header whose address belongs to domain and whose
// local part reads as "first.last", optionally with trailing digits
// ("jovan.petrovic3"). Anything else is rejected.
func ParseSender(from, domain string) (Sender, bool) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return Sender{}, false
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 {
		return Sender{}, false
	}
	local, host := addr.Address[:at], addr.Address[at+1:]
	if domain == "" || !strings.EqualFold(host, domain) {
		return Sender{}, false
	}

	segments := strings.Split(local, ".")
	if len(segments) < 2 {
		return Sender{}, false
	}
	names := make([]string, 0, len(segments))
	for _, seg := range segments {
		name := strings.ToLower(strings.TrimRight(seg, "0123456789"))
		if name == "" {
			return Sender{}, false
		}
		names = append(names, name)
	}

	return Sender{
		Address:   strings.ToLower(addr.Address),
		LocalPart: strings.ToLower(local),
		FirstName: names[0],
		LastName:  names[len(names)-1],
	}, true
}

// MatchesName reports whether fullName starts with the sender's first name and
// ends with the last name, ignoring case and trailing digits. Names with
// diacritics that the corporate address spells in ASCII do not match.
func (s Sender) MatchesName(fullName string) bool {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return false
	}
	first := strings.ToLower(parts[0])
	last := strings.ToLower(strings.TrimRight(parts[len(parts)-1], "0123456789"))
	return first == s.FirstName && last == s.LastName
}
