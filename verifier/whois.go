package verifier

import "github.com/likexian/whois"

// WHOISFunc fetches raw registration data for a domain. Injectable so tests
// never hit real WHOIS servers.
type WHOISFunc func(domain string) (string, error)

// defaultWHOIS queries the live WHOIS infrastructure. Failures are swallowed
// upstream; registration data is enrichment, never a scoring signal.
func defaultWHOIS(domain string) (string, error) {
	return whois.Whois(domain)
}
