package verifier

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MailboxStatus is the tri-state outcome of the RCPT probe.
type MailboxStatus string

const (
	MailboxAccepted      MailboxStatus = "accepted"
	MailboxRejected      MailboxStatus = "rejected"
	MailboxIndeterminate MailboxStatus = "indeterminate"
)

// TriState is a yes/no answer that may also be unknown (check not performed
// or inconclusive).
type TriState string

const (
	TriUnknown TriState = "unknown"
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
)

// ProbeResult is the outcome of one SMTP session against a target mailbox.
// Immutable once returned; it never references the underlying connection.
type ProbeResult struct {
	Connected bool          `json:"connected"`
	Mailbox   MailboxStatus `json:"mailbox"`
	CatchAll  TriState      `json:"catch_all"`
	Host      string        `json:"host,omitempty"`
	Banner    string        `json:"banner,omitempty"`
	Code      int           `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// ProberConfig tunes the SMTP prober.
type ProberConfig struct {
	HeloDomain string        // identity for EHLO/HELO
	MailFrom   string        // plausible return address for MAIL FROM
	Port       int           // SMTP port, 25 unless overridden
	Timeout    time.Duration // per-session deadline (dial + every round-trip)
	// DomainSpacing is the minimum gap between connections to the same
	// destination domain, to stay under greylisting radar. Zero disables it.
	DomainSpacing time.Duration
}

// Prober opens real SMTP sessions to decide whether a mailbox would accept
// mail. It never submits DATA; the session stops after RCPT.
type Prober struct {
	cfg  ProberConfig
	dial func(ctx context.Context, addr string) (net.Conn, error)

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewProber builds a prober. dial is injectable for tests; nil uses a plain
// TCP dialer bounded by cfg.Timeout.
func NewProber(cfg ProberConfig, dial func(ctx context.Context, addr string) (net.Conn, error)) *Prober {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	p := &Prober{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
	if dial == nil {
		d := &net.Dialer{Timeout: cfg.Timeout}
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	p.dial = dial
	return p
}

// Probe tries the exchangers in priority order, falling through to the next
// host on connection failure. Temporary SMTP conditions (greylisting, quota)
// come back as a retryable *ProbeError alongside an indeterminate result, so
// the orchestrator can decide whether the retry budget allows another pass.
func (p *Prober) Probe(ctx context.Context, addr Address, mx MXRecordSet, checkCatchAll bool) (ProbeResult, error) {
	result := ProbeResult{Mailbox: MailboxIndeterminate, CatchAll: TriUnknown}
	if !mx.HasRecords() {
		return result, &ProbeError{Host: addr.Domain, Op: "resolve", Err: ErrNoMXRecords, Transient: false}
	}

	if err := p.waitDomain(ctx, addr.Domain); err != nil {
		return result, &ProbeError{Host: addr.Domain, Op: "pace", Err: err, Transient: true}
	}

	var lastErr error
	for _, host := range mx.Hosts {
		if ctx.Err() != nil {
			return result, &ProbeError{Host: host.Host, Op: "dial", Err: ctx.Err(), Transient: true}
		}

		res, err := p.probeHost(ctx, host.Host, addr, checkCatchAll)
		if !res.Connected {
			// Unreachable exchanger: remember the failure, try the next one.
			lastErr = err
			continue
		}
		return res, err
	}

	if lastErr == nil {
		lastErr = &ProbeError{Host: addr.Domain, Op: "dial", Err: fmt.Errorf("no reachable MX host"), Transient: true}
	}
	return result, lastErr
}

// probeHost walks one session through the state machine:
// Idle -> Connected -> Greeted -> SenderAccepted -> RecipientProbed -> Closed.
// The session is torn down with QUIT on every exit path.
func (p *Prober) probeHost(ctx context.Context, host string, addr Address, checkCatchAll bool) (ProbeResult, error) {
	result := ProbeResult{Mailbox: MailboxIndeterminate, CatchAll: TriUnknown, Host: host}
	started := time.Now()

	conn, err := p.dial(ctx, net.JoinHostPort(host, strconv.Itoa(p.cfg.Port)))
	if err != nil {
		return result, &ProbeError{Host: host, Op: "dial", Err: err, Transient: true}
	}

	s := &probeSession{conn: conn, text: textproto.NewConn(conn), timeout: p.cfg.Timeout}
	defer s.close()
	result.Connected = true

	// Greeting.
	code, banner, err := s.readReply(2)
	result.Banner = banner
	if err != nil {
		result.Latency = time.Since(started)
		return result, probeErr(host, "greeting", code, err)
	}

	// EHLO with HELO fallback.
	code, _, err = s.cmd(2, "EHLO %s", p.cfg.HeloDomain)
	if err != nil && code > 0 {
		code, _, err = s.cmd(2, "HELO %s", p.cfg.HeloDomain)
	}
	if err != nil {
		// Server is up but unwilling to talk; that is an answer, not a bug.
		result.Code = code
		result.Latency = time.Since(started)
		if code == 0 {
			return result, probeErr(host, "helo", code, err)
		}
		return result, nil
	}

	// Sender declaration.
	code, msg, err := s.cmd(2, "MAIL FROM:<%s>", p.cfg.MailFrom)
	if err != nil {
		result.Code = code
		result.Message = msg
		result.Latency = time.Since(started)
		if code == 0 {
			return result, probeErr(host, "mail", code, err)
		}
		if isTempCode(code) {
			return result, &ProbeError{Host: host, Op: "mail", Code: code, Err: fmt.Errorf("sender rejected: %s", msg), Transient: true}
		}
		return result, nil
	}

	// Recipient probe: the deliverability evidence.
	code, msg, err = s.cmd(2, "RCPT TO:<%s>", addr.Raw)
	result.Code = code
	result.Message = msg
	result.Latency = time.Since(started)
	result.Mailbox = classifyRcpt(code)
	if err != nil && code == 0 {
		return result, probeErr(host, "rcpt", code, err)
	}

	var rcptErr error
	if isTempCode(code) {
		rcptErr = &ProbeError{Host: host, Op: "rcpt", Code: code, Err: fmt.Errorf("temporary failure: %s", msg), Transient: true}
	}

	// Catch-all probe reuses the session via RSET with a local part that
	// cannot plausibly exist.
	if checkCatchAll && result.Mailbox != MailboxIndeterminate {
		result.CatchAll = p.catchAllProbe(s, addr.Domain)
	}

	return result, rcptErr
}

func (p *Prober) catchAllProbe(s *probeSession, domain string) TriState {
	if _, _, err := s.cmd(2, "RSET"); err != nil {
		return TriUnknown
	}
	if _, _, err := s.cmd(2, "MAIL FROM:<%s>", p.cfg.MailFrom); err != nil {
		return TriUnknown
	}
	code, _, err := s.cmd(2, "RCPT TO:<%s@%s>", randomLocalPart(), domain)
	switch {
	case err == nil && code/100 == 2:
		return TriYes
	case code >= 500:
		return TriNo
	default:
		return TriUnknown
	}
}

func (p *Prober) waitDomain(ctx context.Context, domain string) error {
	if p.cfg.DomainSpacing <= 0 {
		return nil
	}
	p.mu.Lock()
	lim, ok := p.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.cfg.DomainSpacing), 1)
		p.limiters[domain] = lim
	}
	p.mu.Unlock()
	return lim.Wait(ctx)
}

// classifyRcpt maps an RCPT response code to the tri-state verdict: 2xx is
// an accept, the no-such-user family is a reject, everything else (including
// greylisting) proves nothing.
func classifyRcpt(code int) MailboxStatus {
	switch {
	case code/100 == 2:
		return MailboxAccepted
	case code == 550 || code == 551 || code == 553:
		return MailboxRejected
	default:
		return MailboxIndeterminate
	}
}

// isTempCode covers the greylisting / quota / shutting-down family.
func isTempCode(code int) bool {
	return code == 421 || code == 450 || code == 451 || code == 452
}

// probeErr classifies a session error: server-sent codes were already
// handled, so err here is transport- or parse-level. Timeouts and broken
// connections may clear up on retry; a response we cannot parse will not.
func probeErr(host, op string, code int, err error) *ProbeError {
	transient := true
	if _, ok := err.(textproto.ProtocolError); ok {
		transient = false
	}
	return &ProbeError{Host: host, Op: op, Code: code, Err: err, Transient: transient}
}

func randomLocalPart() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "nonexistent-mailbox-probe"
	}
	return "probe-" + hex.EncodeToString(b[:])
}

// probeSession owns one connection for the lifetime of a probe. Every
// command refreshes the I/O deadline, and close issues QUIT before releasing
// the socket regardless of how far the session got.
type probeSession struct {
	conn    net.Conn
	text    *textproto.Conn
	timeout time.Duration
	closed  bool
}

func (s *probeSession) cmd(expectCode int, format string, args ...any) (int, string, error) {
	s.conn.SetDeadline(time.Now().Add(s.timeout))
	id, err := s.text.Cmd(format, args...)
	if err != nil {
		return 0, "", err
	}
	s.text.StartResponse(id)
	defer s.text.EndResponse(id)
	code, msg, err := s.text.ReadResponse(expectCode)
	return code, msg, err
}

func (s *probeSession) readReply(expectCode int) (int, string, error) {
	s.conn.SetDeadline(time.Now().Add(s.timeout))
	return s.text.ReadResponse(expectCode)
}

func (s *probeSession) close() {
	if s.closed {
		return
	}
	s.closed = true
	// Best effort: the server may already be gone.
	s.conn.SetDeadline(time.Now().Add(s.timeout))
	if id, err := s.text.Cmd("QUIT"); err == nil {
		s.text.StartResponse(id)
		s.text.ReadResponse(221)
		s.text.EndResponse(id)
	}
	s.text.Close()
}
