package verifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMX is a minimal scripted SMTP server. It speaks just enough of the
// protocol for the prober's command sequence and records every command line
// it receives.
type fakeMX struct {
	ln net.Listener

	// rcptCode decides the reply to RCPT TO for a given recipient.
	rcptCode func(to string) int

	mu       sync.Mutex
	commands []string
}

func startFakeMX(t *testing.T, rcptCode func(to string) int) *fakeMX {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeMX{ln: ln, rcptCode: rcptCode}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeMX) addr() string { return s.ln.Addr().String() }

func (s *fakeMX) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeMX) handle(conn net.Conn) {
	defer conn.Close()
	text := textproto.NewConn(conn)
	text.PrintfLine("220 mx.test ESMTP ready")

	for {
		line, err := text.ReadLine()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(verb, "EHLO"):
			text.PrintfLine("250-mx.test")
			text.PrintfLine("250 PIPELINING")
		case strings.HasPrefix(verb, "HELO"):
			text.PrintfLine("250 mx.test")
		case strings.HasPrefix(verb, "MAIL FROM"):
			text.PrintfLine("250 2.1.0 sender ok")
		case strings.HasPrefix(verb, "RCPT TO"):
			to := line[strings.Index(line, "<")+1 : strings.LastIndex(line, ">")]
			code := s.rcptCode(to)
			switch {
			case code/100 == 2:
				text.PrintfLine("%d 2.1.5 recipient ok", code)
			case isTempCode(code):
				text.PrintfLine("%d 4.2.0 greylisted, try again later", code)
			default:
				text.PrintfLine("%d 5.1.1 no such user", code)
			}
		case strings.HasPrefix(verb, "RSET"):
			text.PrintfLine("250 2.0.0 reset")
		case strings.HasPrefix(verb, "QUIT"):
			text.PrintfLine("221 2.0.0 bye")
			return
		default:
			text.PrintfLine("502 5.5.2 command not recognized")
		}
	}
}

func (s *fakeMX) sawCommand(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if strings.HasPrefix(strings.ToUpper(c), prefix) {
			return true
		}
	}
	return false
}

// waitForQuit polls until the server has seen QUIT; the prober sends it
// during teardown, slightly after Probe returns.
func (s *fakeMX) waitForQuit(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.sawCommand("QUIT") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never received QUIT")
}

func testProber(s *fakeMX) *Prober {
	dial := func(ctx context.Context, addr string) (net.Conn, error) {
		if strings.HasPrefix(addr, "unreachable") {
			return nil, fmt.Errorf("connect %s: connection refused", addr)
		}
		return net.Dial("tcp", s.addr())
	}
	return NewProber(ProberConfig{
		HeloDomain: "probe.test",
		MailFrom:   "verify@probe.test",
		Timeout:    2 * time.Second,
	}, dial)
}

func singleMX(domain string) MXRecordSet {
	return MXRecordSet{Domain: domain, Hosts: []MXHost{{Host: "mx.test", Pref: 10}}}
}

func TestProbeAcceptedMailbox(t *testing.T) {
	s := startFakeMX(t, func(string) int { return 250 })
	p := testProber(s)

	res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), singleMX("example.com"), false)
	require.NoError(t, err)

	assert.True(t, res.Connected)
	assert.Equal(t, MailboxAccepted, res.Mailbox)
	assert.Equal(t, TriUnknown, res.CatchAll)
	assert.Equal(t, 250, res.Code)
	assert.Contains(t, res.Banner, "mx.test")
	assert.Positive(t, res.Latency)

	s.waitForQuit(t)
}

func TestProbeRejectedMailbox(t *testing.T) {
	s := startFakeMX(t, func(string) int { return 550 })
	p := testProber(s)

	res, err := p.Probe(context.Background(), mustParse(t, "ghost@example.com"), singleMX("example.com"), false)
	require.NoError(t, err, "a definitive reject is an answer, not an error")

	assert.True(t, res.Connected)
	assert.Equal(t, MailboxRejected, res.Mailbox)
	assert.Equal(t, 550, res.Code)

	// The session still ends with QUIT after a reject.
	s.waitForQuit(t)
}

func TestProbeGreylistedIsRetryable(t *testing.T) {
	s := startFakeMX(t, func(string) int { return 450 })
	p := testProber(s)

	res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), singleMX("example.com"), false)
	require.Error(t, err)

	var pe *ProbeError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.Equal(t, 450, pe.Code)

	assert.True(t, res.Connected, "the failed attempt still carries evidence")
	assert.Equal(t, MailboxIndeterminate, res.Mailbox)
}

func TestProbeCatchAllDetection(t *testing.T) {
	t.Run("domain accepts anything", func(t *testing.T) {
		s := startFakeMX(t, func(string) int { return 250 })
		p := testProber(s)

		res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), singleMX("example.com"), true)
		require.NoError(t, err)
		assert.Equal(t, MailboxAccepted, res.Mailbox)
		assert.Equal(t, TriYes, res.CatchAll)
		assert.True(t, s.sawCommand("RSET"), "catch-all check must reuse the session via RSET")
	})

	t.Run("random recipient rejected", func(t *testing.T) {
		s := startFakeMX(t, func(to string) int {
			if strings.HasPrefix(to, "probe-") {
				return 550
			}
			return 250
		})
		p := testProber(s)

		res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), singleMX("example.com"), true)
		require.NoError(t, err)
		assert.Equal(t, MailboxAccepted, res.Mailbox)
		assert.Equal(t, TriNo, res.CatchAll)
	})
}

func TestProbeFallsThroughToNextHost(t *testing.T) {
	s := startFakeMX(t, func(string) int { return 250 })
	p := testProber(s)

	mx := MXRecordSet{Domain: "example.com", Hosts: []MXHost{
		{Host: "unreachable.test", Pref: 5},
		{Host: "mx.test", Pref: 10},
	}}

	res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), mx, false)
	require.NoError(t, err)
	assert.True(t, res.Connected)
	assert.Equal(t, "mx.test", res.Host)
	assert.Equal(t, MailboxAccepted, res.Mailbox)
}

func TestProbeNoReachableHost(t *testing.T) {
	p := NewProber(ProberConfig{HeloDomain: "probe.test", MailFrom: "verify@probe.test"},
		func(ctx context.Context, addr string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		})

	mx := MXRecordSet{Domain: "example.com", Hosts: []MXHost{{Host: "mx1.test", Pref: 5}}}
	res, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), mx, false)
	require.Error(t, err)

	var pe *ProbeError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.False(t, res.Connected)
	assert.Equal(t, MailboxIndeterminate, res.Mailbox)
}

func TestProbeWithoutMXRecords(t *testing.T) {
	p := NewProber(ProberConfig{}, nil)
	_, err := p.Probe(context.Background(), mustParse(t, "user@example.com"), MXRecordSet{Domain: "example.com"}, false)

	var pe *ProbeError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Retryable())
	assert.ErrorIs(t, err, ErrNoMXRecords)
}

func TestClassifyRcpt(t *testing.T) {
	assert.Equal(t, MailboxAccepted, classifyRcpt(250))
	assert.Equal(t, MailboxAccepted, classifyRcpt(251))
	assert.Equal(t, MailboxRejected, classifyRcpt(550))
	assert.Equal(t, MailboxRejected, classifyRcpt(551))
	assert.Equal(t, MailboxRejected, classifyRcpt(553))
	assert.Equal(t, MailboxIndeterminate, classifyRcpt(450))
	assert.Equal(t, MailboxIndeterminate, classifyRcpt(421))
	assert.Equal(t, MailboxIndeterminate, classifyRcpt(554))
}

func TestIsTempCode(t *testing.T) {
	for _, code := range []int{421, 450, 451, 452} {
		assert.True(t, isTempCode(code), "code %d", code)
	}
	for _, code := range []int{250, 550, 553, 554} {
		assert.False(t, isTempCode(code), "code %d", code)
	}
}
