package verifier

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// WebsiteFunc reports whether the domain serves a website. Injectable so
// tests never leave the process.
type WebsiteFunc func(ctx context.Context, domain string) bool

// Security gateways (Cloudflare and friends) reject obvious bots; a browser
// User-Agent keeps the check measuring the site, not the firewall.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// defaultWebsite tries HTTPS first, then plain HTTP for older domains.
// Certificate problems are ignored; this measures presence, not hygiene.
func defaultWebsite(ctx context.Context, domain string) bool {
	client := &http.Client{
		Timeout: 3 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return siteResponds(ctx, client, "https://"+domain) ||
		siteResponds(ctx, client, "http://"+domain)
}

// siteResponds counts 2xx, redirects and 401/403 as a live site: a server
// gatekeeping its content is still a real server, whereas throwaway domains
// refuse the connection or 404.
func siteResponds(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound,
		http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
