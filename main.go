package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"mailflow/config"
	"mailflow/mailer"
	"mailflow/refdata"
	"mailflow/verifier"
)

func main() {
	var (
		email      = flag.String("email", "", "validate a single address")
		file       = flag.String("file", "", "validate addresses from a file, one per line")
		syntaxOnly = flag.Bool("syntax-only", false, "check syntax without any network work")
		skipSMTP   = flag.Bool("skip-smtp", true, "skip the live SMTP probe")
		catchAll   = flag.Bool("catch-all", false, "also probe for catch-all acceptance")
		website    = flag.Bool("website", false, "also check the domain's web presence")
		deadline   = flag.Duration("deadline", 0, "overall deadline for a batch (0 = none)")
		send       = flag.String("send", "", "send a campaign to addresses from a file, one per line")
		subject    = flag.String("subject", "", "campaign subject line (with -send)")
		htmlBody   = flag.String("html", "", "path to the campaign HTML body (with -send)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg)

	sets := refdata.Load()
	v := verifier.New(verifier.Config{
		HeloDomain:     cfg.HeloDomain,
		MailFrom:       cfg.MailFrom,
		DNSTimeout:     cfg.DNSTimeout,
		MXCacheTTL:     cfg.MXCacheTTL,
		ProbeTimeout:   cfg.ProbeTimeout,
		DomainSpacing:  cfg.DomainSpacing,
		MaxConcurrency: cfg.MaxConcurrency,
		ProbeRetries:   cfg.ProbeRetries,
	}, sets, log)

	opts := verifier.Options{
		SkipSMTP:      *skipSMTP,
		CheckCatchAll: *catchAll,
		CheckWebsite:  *website,
		WithWHOIS:     cfg.WHOISEnabled,
	}

	ctx := context.Background()
	if *deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	switch {
	case *email != "":
		runOne(ctx, v, *email, opts)
	case *file != "":
		runFile(ctx, v, *file, opts, cfg, *syntaxOnly, log)
	case *send != "":
		runSend(ctx, cfg, *send, *subject, *htmlBody, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runOne(ctx context.Context, v *verifier.Verifier, email string, opts verifier.Options) {
	rec, err := v.ValidateOne(ctx, email, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printJSON(rec)
}

func runFile(ctx context.Context, v *verifier.Verifier, path string, opts verifier.Options,
	cfg *config.Config, syntaxOnly bool, log *logrus.Logger) {

	emails, err := readLines(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	if syntaxOnly {
		if len(emails) > cfg.BulkLimitFile {
			fmt.Fprintf(os.Stderr, "file contains %d addresses, limit is %d\n", len(emails), cfg.BulkLimitFile)
			os.Exit(1)
		}
		printJSON(verifier.CheckSyntax(emails))
		return
	}

	started := time.Now()
	report, err := v.ValidateMany(ctx, emails, opts, cfg.BulkLimitFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"total":   report.Total,
		"valid":   report.ValidCount,
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
	}).Info("batch validation finished")
	printJSON(report)
}

func runSend(ctx context.Context, cfg *config.Config, path, subject, htmlPath string, log *logrus.Logger) {
	recipients, err := readLines(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	body, err := os.ReadFile(htmlPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "html body:", err)
		os.Exit(1)
	}

	c := mailer.Campaign{
		FromEmail:      cfg.FromEmail,
		FromName:       cfg.FromName,
		MaxConcurrency: cfg.MaxConcurrency,
		SendTimeout:    cfg.SendTimeout,
	}
	for _, r := range recipients {
		c.Messages = append(c.Messages, mailer.Message{
			ToEmail:  r,
			Subject:  subject,
			HTMLBody: string(body),
		})
	}

	d := mailer.NewDispatcher(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}, log)

	report, err := d.Send(ctx, c)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printJSON(report)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
