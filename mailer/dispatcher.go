package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"mailflow/worker"
)

// Failure records one permanently failed recipient with its last error.
type Failure struct {
	Recipient string `json:"email"`
	Error     string `json:"error"`
}

// Report is the campaign outcome: counts plus the ordered failure list.
// Nothing is rolled back on partial failure.
type Report struct {
	Total        int       `json:"total"`
	Sent         int       `json:"sent_count"`
	Failed       int       `json:"failed_count"`
	NotAttempted int       `json:"not_attempted,omitempty"`
	Failures     []Failure `json:"failed_details"`
}

// DialFunc opens one SMTP submission session. Injectable for tests.
type DialFunc func() (gomail.SendCloser, error)

// Dispatcher sends campaigns. Safe for concurrent use; each delivery dials
// its own session so a stalled connection affects exactly one message.
type Dispatcher struct {
	dial DialFunc
	log  *logrus.Logger
}

// NewDispatcher builds a dispatcher for the given submission server.
func NewDispatcher(cfg SMTPConfig, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Dispatcher{
		dial: func() (gomail.SendCloser, error) { return d.Dial() },
		log:  log,
	}
}

// NewDispatcherWithDialer builds a dispatcher around a custom session
// factory, for tests and alternative transports.
func NewDispatcherWithDialer(dial DialFunc, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{dial: dial, log: log}
}

// Send runs a campaign to completion. Request-shape problems (bad from
// address, empty message list, oversize subject) abort before any delivery;
// per-message failures are retried up to the budget and then recorded.
func (d *Dispatcher) Send(ctx context.Context, c Campaign) (*Report, error) {
	if err := validateCampaign(c); err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"messages":    len(c.Messages),
		"batch_size":  c.BatchSize,
		"concurrency": c.MaxConcurrency,
	}).Info("campaign dispatch started")

	timeout := c.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	results := worker.Run(ctx, c.Messages,
		func(ctx context.Context, msg Message) (string, error) {
			if err := d.deliver(ctx, c, msg); err != nil {
				return msg.ToEmail, &SendError{Recipient: msg.ToEmail, Err: err}
			}
			return msg.ToEmail, nil
		},
		worker.Options{
			Workers:        c.MaxConcurrency,
			MaxRetries:     c.MaxRetries,
			AttemptTimeout: timeout,
			BatchSize:      c.BatchSize,
			BatchDelay:     c.BatchDelay,
			Logger:         d.log,
		})

	report := &Report{Total: len(c.Messages), Failures: []Failure{}}
	for i, res := range results {
		switch {
		case !res.Attempted:
			report.NotAttempted++
		case res.Err != nil:
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				Recipient: c.Messages[i].ToEmail,
				Error:     res.Err.Error(),
			})
		default:
			report.Sent++
		}
	}

	d.log.WithFields(logrus.Fields{
		"sent":   report.Sent,
		"failed": report.Failed,
	}).Info("campaign dispatch finished")
	return report, nil
}

// deliver sends one message over a fresh session. The session is closed on
// every path so a failed DATA never leaks a connection, and closing it is
// also what unblocks a send stalled mid-protocol when the attempt deadline
// expires.
func (d *Dispatcher) deliver(ctx context.Context, c Campaign, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc, err := d.dial()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- gomail.Send(sc, build(c, msg)) }()

	select {
	case err := <-done:
		sc.Close()
		return err
	case <-ctx.Done():
		// Tear the session down under the stalled send; the dead socket
		// forces it to return.
		sc.Close()
		return ctx.Err()
	}
}
