package verifier

import (
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"golang.org/x/net/idna"
)

// Strict format: alphanumeric runs joined by single ._%+- separators in the
// local part, dot-separated labels and an alphabetic TLD in the domain.
var emailRegex = regexp.MustCompile(
	`^[A-Za-z0-9]+(?:[._%+-][A-Za-z0-9]+)*@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)

const (
	maxLocalLen  = 64  // RFC 5321 4.5.3.1.1
	maxDomainLen = 255 // RFC 5321 4.5.3.1.2
)

// Address is a parsed, normalized email address. Immutable once constructed.
type Address struct {
	Raw    string // normalized full address (lowercased, trimmed)
	Local  string
	Domain string // IDNA ASCII form
	TLD    string
}

// ParseAddress validates and splits a raw address. Input is trimmed and
// lowercased first. On failure the returned error is a *SyntaxError.
func ParseAddress(raw string) (Address, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return Address{}, &SyntaxError{Email: raw, Reason: "empty address"}
	}
	if !emailRegex.MatchString(email) {
		return Address{}, &SyntaxError{Email: raw, Reason: "invalid format"}
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return Address{}, &SyntaxError{Email: raw, Reason: err.Error()}
	}

	local, domain, _ := strings.Cut(email, "@")
	if len(local) > maxLocalLen {
		return Address{}, &SyntaxError{Email: raw, Reason: "local part exceeds 64 characters"}
	}
	if len(domain) > maxDomainLen {
		return Address{}, &SyntaxError{Email: raw, Reason: "domain exceeds 255 characters"}
	}
	if strings.Contains(local, "..") || strings.Contains(domain, "..") {
		return Address{}, &SyntaxError{Email: raw, Reason: "consecutive dots not allowed"}
	}

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return Address{}, &SyntaxError{Email: raw, Reason: "domain is not a valid hostname"}
	}

	tld := asciiDomain
	if i := strings.LastIndexByte(asciiDomain, '.'); i >= 0 {
		tld = asciiDomain[i+1:]
	}

	return Address{
		Raw:    local + "@" + asciiDomain,
		Local:  local,
		Domain: asciiDomain,
		TLD:    tld,
	}, nil
}
