package verifier

import (
	"fmt"
	"math"
)

// Scoring weights. Each positive signal adds its weight; signals that were
// never evaluated add nothing, so skipping a check can only lower the score,
// never raise it. Anyone tuning these must keep the sum of all positives at
// or above 1 so a fully clean address can reach the cap.
const (
	weightSyntax      = 0.15
	weightNotDispose  = 0.15
	weightHasMX       = 0.20
	weightAccepted    = 0.30
	weightNotCatchAll = 0.10
	weightNotRole     = 0.05
	weightPaidDomain  = 0.05

	// A confirmed catch-all makes the RCPT accept untrustworthy evidence,
	// so the accept weight is halved rather than dropped.
	catchAllDownWeight = 0.5
)

// SignalBundle is every finding for one address. Assembled incrementally by
// the pipeline run that owns it and finalized before scoring; Score never
// mutates it.
type SignalBundle struct {
	Email          string           `json:"email"`
	SyntaxValid    bool             `json:"is_valid_syntax"`
	Classification Classification   `json:"classification"`
	HasMX          bool             `json:"has_mx_records"`
	MXEvaluated    bool             `json:"-"`
	Probe          *ProbeResult     `json:"probe,omitempty"`
	Typo           *TypoSuggestion  `json:"typo,omitempty"`
	Gibberish      *GibberishResult `json:"gibberish,omitempty"`
	Demographics   *Demographics    `json:"demographics,omitempty"`
	Website        TriState         `json:"website,omitempty"`
	WHOIS          string           `json:"whois,omitempty"`
}

// ValidationRecord is the unit returned to callers: the bundle plus the
// derived score and rendered detail lines. Immutable after scoring.
type ValidationRecord struct {
	SignalBundle
	IsDeliverableSMTP bool              `json:"is_deliverable_smtp"`
	IsCatchAllDomain  bool              `json:"is_catch_all_domain"`
	Confidence        float64           `json:"confidence_score"`
	Details           map[string]string `json:"details"`
}

// Score folds a finalized bundle into a confidence in [0,1] plus detail
// strings. Pure: the same bundle always yields the same output.
func Score(b SignalBundle) (float64, map[string]string) {
	details := make(map[string]string)
	var score float64

	if b.SyntaxValid {
		score += weightSyntax
		details["syntax"] = "Valid"
	} else {
		details["syntax"] = "Invalid format"
		return 0, details
	}

	c := b.Classification
	if c.IsDisposable {
		details["disposable"] = "Warning: disposable email domain"
	} else {
		score += weightNotDispose
		details["disposable"] = "OK: permanent email domain"
	}
	if c.IsSuspiciousTLD {
		details["tld"] = "Warning: high-risk TLD"
	} else {
		details["tld"] = "OK: standard TLD"
	}
	if c.IsRoleBased {
		details["role_based"] = "Yes"
	} else {
		score += weightNotRole
		details["role_based"] = "No"
	}
	if c.IsPaidDomain {
		score += weightPaidDomain
		details["paid_domain"] = "Yes: paid email provider"
	} else {
		details["paid_domain"] = "No: free or unknown provider"
	}

	if !b.MXEvaluated {
		details["mx_records"] = "Not checked"
	} else if b.HasMX {
		score += weightHasMX
		details["mx_records"] = "MX records found"
	} else {
		details["mx_records"] = "No MX records found"
	}

	score += scoreProbe(b.Probe, details)

	// Web presence is enrichment, never a weight.
	switch b.Website {
	case TriYes:
		details["http_status"] = "Website reachable"
	case TriNo:
		details["http_status"] = "Website unreachable (MX still present)"
	}

	if b.Typo != nil {
		details["typo"] = fmt.Sprintf("Possible typo, did you mean %s? (confidence %.2f)",
			b.Typo.Suggestion, b.Typo.Confidence)
	}
	if b.Gibberish != nil && b.Gibberish.IsGibberish {
		details["bot_check"] = "Warning: local part looks machine-generated"
	}

	return clampScore(score), details
}

func scoreProbe(p *ProbeResult, details map[string]string) float64 {
	if p == nil {
		details["smtp"] = "Skipped"
		details["catch_all"] = "Unknown (SMTP skipped)"
		return 0
	}
	if !p.Connected {
		details["smtp"] = "No SMTP evidence: could not reach any mail exchanger"
		details["catch_all"] = "Unknown"
		return 0
	}

	details["smtp"] = fmt.Sprintf("Code %d: %s", p.Code, p.Message)

	switch p.Mailbox {
	case MailboxAccepted:
		switch p.CatchAll {
		case TriYes:
			details["catch_all"] = "Yes: domain accepts any recipient"
			return weightAccepted * catchAllDownWeight
		case TriNo:
			details["catch_all"] = "No"
			return weightAccepted + weightNotCatchAll
		default:
			details["catch_all"] = "Unknown (not checked)"
			return weightAccepted
		}
	case MailboxRejected:
		details["catch_all"] = "No"
		return 0
	default:
		details["catch_all"] = "Unknown"
		return 0
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	// Two decimal places, matching the wire format callers expect.
	return math.Round(s*100) / 100
}

// finalize derives the caller-facing record from a finished bundle.
func finalize(b SignalBundle) *ValidationRecord {
	confidence, details := Score(b)
	rec := &ValidationRecord{
		SignalBundle: b,
		Confidence:   confidence,
		Details:      details,
	}
	if b.Probe != nil {
		rec.IsDeliverableSMTP = b.Probe.Mailbox == MailboxAccepted
		rec.IsCatchAllDomain = b.Probe.CatchAll == TriYes
	}
	return rec
}
