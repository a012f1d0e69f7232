// Package verifier is the deliverability verification engine: it parses and
// classifies addresses, resolves mail-exchange infrastructure, probes SMTP
// servers without delivering mail, and folds every signal into a single
// confidence score.
package verifier

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mailflow/refdata"
	"mailflow/worker"
)

// Options selects the optional steps for one validation request. A skipped
// step leaves its signal unevaluated, which contributes zero to the score.
type Options struct {
	SkipSMTP      bool
	CheckCatchAll bool
	CheckWebsite  bool
	WithWHOIS     bool
}

// Config tunes the engine.
type Config struct {
	HeloDomain    string
	MailFrom      string
	DNSTimeout    time.Duration
	MXCacheTTL    time.Duration
	ProbeTimeout  time.Duration
	DomainSpacing time.Duration
	// MaxConcurrency bounds simultaneous pipelines in ValidateMany.
	MaxConcurrency int
	// ProbeRetries is the per-address retry budget for transient SMTP
	// failures (greylisting, refused connections).
	ProbeRetries int
}

func (c Config) withDefaults() Config {
	if c.HeloDomain == "" {
		c.HeloDomain = "localhost"
	}
	if c.MailFrom == "" {
		c.MailFrom = "probe@example.com"
	}
	if c.DNSTimeout <= 0 {
		c.DNSTimeout = 5 * time.Second
	}
	if c.MXCacheTTL <= 0 {
		c.MXCacheTTL = 10 * time.Minute
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 10
	}
	if c.ProbeRetries < 0 {
		c.ProbeRetries = 0
	}
	return c
}

// Verifier runs the per-address pipeline. Safe for concurrent use: the
// reference sets are read-only and the resolver/prober synchronize their own
// caches.
type Verifier struct {
	cfg      Config
	sets     *refdata.Sets
	resolver *Resolver
	prober   *Prober
	whois    WHOISFunc
	website  WebsiteFunc
	log      *logrus.Logger
}

// New builds a verifier over the given reference sets. Pass a nil logger to
// get a default one.
func New(cfg Config, sets *refdata.Sets, log *logrus.Logger) *Verifier {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.New()
	}
	return &Verifier{
		cfg:      cfg,
		sets:     sets,
		resolver: NewResolver(cfg.DNSTimeout, cfg.MXCacheTTL, nil),
		prober: NewProber(ProberConfig{
			HeloDomain:    cfg.HeloDomain,
			MailFrom:      cfg.MailFrom,
			Timeout:       cfg.ProbeTimeout,
			DomainSpacing: cfg.DomainSpacing,
		}, nil),
		whois:   defaultWHOIS,
		website: defaultWebsite,
		log:     log,
	}
}

// SetResolver swaps the MX resolver, mainly for tests.
func (v *Verifier) SetResolver(r *Resolver) { v.resolver = r }

// SetProber swaps the SMTP prober, mainly for tests.
func (v *Verifier) SetProber(p *Prober) { v.prober = p }

// SetWHOIS swaps the WHOIS client, mainly for tests.
func (v *Verifier) SetWHOIS(fn WHOISFunc) { v.whois = fn }

// SetWebsite swaps the web-presence checker, mainly for tests.
func (v *Verifier) SetWebsite(fn WebsiteFunc) { v.website = fn }

// ValidateOne runs the full pipeline for a single address. The only error
// is *SyntaxError; every other condition degrades into the record's signals.
func (v *Verifier) ValidateOne(ctx context.Context, email string, opts Options) (*ValidationRecord, error) {
	addr, err := ParseAddress(email)
	if err != nil {
		return nil, err
	}
	return v.validate(ctx, addr, opts), nil
}

// validate assembles the SignalBundle for a parsed address and scores it.
func (v *Verifier) validate(ctx context.Context, addr Address, opts Options) *ValidationRecord {
	bundle := SignalBundle{
		Email:          addr.Raw,
		SyntaxValid:    true,
		Classification: Classify(addr, v.sets),
	}

	if typo, ok := SuggestDomain(addr.Domain, v.sets.FreeProviders); ok {
		bundle.Typo = &typo
	}
	gib := DetectGibberish(addr.Local)
	bundle.Gibberish = &gib
	demo := InferDemographics(addr.Local, v.sets.GivenNames)
	bundle.Demographics = &demo

	// Disposable and high-risk-TLD addresses are not worth network traffic;
	// their MX and SMTP signals stay unevaluated.
	if bundle.Classification.IsDisposable || bundle.Classification.IsSuspiciousTLD {
		return finalize(bundle)
	}

	mx, err := v.resolver.ResolveMX(ctx, addr.Domain)
	bundle.MXEvaluated = true
	bundle.HasMX = mx.HasRecords()
	if err != nil && err != ErrNoMXRecords {
		v.log.WithFields(logrus.Fields{"domain": addr.Domain, "error": err.Error()}).
			Debug("MX resolution failed")
	}

	// A domain that receives mail usually serves a site too; checking one
	// without MX records would only measure parked pages.
	if opts.CheckWebsite && bundle.HasMX {
		if v.website(ctx, addr.Domain) {
			bundle.Website = TriYes
		} else {
			bundle.Website = TriNo
		}
	}

	if bundle.HasMX && !opts.SkipSMTP {
		probe := v.probeWithRetry(ctx, addr, mx, opts.CheckCatchAll)
		bundle.Probe = &probe
	}

	if opts.WithWHOIS {
		if info, err := v.whois(addr.Domain); err == nil {
			bundle.WHOIS = info
		}
	}

	return finalize(bundle)
}

// probeWithRetry gives transient SMTP failures (greylisting, refused
// connections) a bounded second chance. The final probe result is kept even
// when the last attempt still errored: indeterminate evidence is evidence.
func (v *Verifier) probeWithRetry(ctx context.Context, addr Address, mx MXRecordSet, checkCatchAll bool) ProbeResult {
	results := worker.Run(ctx, []Address{addr},
		func(ctx context.Context, a Address) (ProbeResult, error) {
			return v.prober.Probe(ctx, a, mx, checkCatchAll)
		},
		worker.Options{
			Workers:        1,
			MaxRetries:     v.cfg.ProbeRetries,
			AttemptTimeout: v.cfg.ProbeTimeout * time.Duration(1+len(mx.Hosts)),
			Logger:         v.log,
		})

	res := results[0]
	if res.Err != nil {
		v.log.WithFields(logrus.Fields{
			"email":    addr.Raw,
			"attempts": res.Attempts,
			"error":    res.Err.Error(),
		}).Debug("SMTP probe exhausted retries")
	}
	return res.Value
}

// BatchReport aggregates a ValidateMany run. Records line up 1:1 with the
// request, in request order.
type BatchReport struct {
	Total        int                 `json:"total"`
	ValidCount   int                 `json:"valid_count"`
	InvalidCount int                 `json:"invalid_count"`
	NotAttempted int                 `json:"not_attempted,omitempty"`
	Records      []*ValidationRecord `json:"results"`
}

// ValidateMany validates a list of addresses concurrently. Requests over the
// caller-supplied limit are rejected with *LimitError before any work begins.
// Per-address syntax failures become records with a zero score; they never
// abort their siblings.
func (v *Verifier) ValidateMany(ctx context.Context, emails []string, opts Options, limit int) (*BatchReport, error) {
	if limit > 0 && len(emails) > limit {
		return nil, &LimitError{Count: len(emails), Limit: limit}
	}

	concurrency := v.cfg.MaxConcurrency
	if !opts.SkipSMTP && concurrency > 5 {
		// Probing holds sockets open for seconds at a time; keep the
		// blast radius small.
		concurrency = 5
	}

	results := worker.Run(ctx, emails,
		func(ctx context.Context, email string) (*ValidationRecord, error) {
			rec, err := v.ValidateOne(ctx, email, opts)
			if err != nil {
				return syntaxFailureRecord(email, err), nil
			}
			return rec, nil
		},
		worker.Options{
			Workers: concurrency,
			Logger:  v.log,
		})

	report := &BatchReport{Total: len(emails), Records: make([]*ValidationRecord, len(emails))}
	for i, res := range results {
		if !res.Attempted {
			report.NotAttempted++
			report.Records[i] = notAttemptedRecord(emails[i])
			continue
		}
		report.Records[i] = res.Value
		if res.Value.SyntaxValid {
			report.ValidCount++
		} else {
			report.InvalidCount++
		}
	}
	return report, nil
}

// SyntaxResult is the outcome of a syntax-only check.
type SyntaxResult struct {
	Email         string `json:"email"`
	IsValidSyntax bool   `json:"is_valid_syntax"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// CheckSyntax validates format only, deduplicating repeats, for callers
// holding large file-derived lists.
func CheckSyntax(emails []string) []SyntaxResult {
	results := make([]SyntaxResult, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, raw := range emails {
		email := trimmed(raw)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		r := SyntaxResult{Email: email}
		if _, err := ParseAddress(email); err != nil {
			r.ErrorMessage = err.(*SyntaxError).Reason
		} else {
			r.IsValidSyntax = true
		}
		results = append(results, r)
	}
	return results
}

func trimmed(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func syntaxFailureRecord(email string, err error) *ValidationRecord {
	reason := "invalid format"
	if se, ok := err.(*SyntaxError); ok {
		reason = se.Reason
	}
	return &ValidationRecord{
		SignalBundle: SignalBundle{Email: email},
		Confidence:   0,
		Details:      map[string]string{"syntax": "Invalid: " + reason},
	}
}

func notAttemptedRecord(email string) *ValidationRecord {
	return &ValidationRecord{
		SignalBundle: SignalBundle{Email: email},
		Confidence:   0,
		Details:      map[string]string{"status": "Not attempted: batch deadline reached"},
	}
}
