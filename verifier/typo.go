package verifier

import "mailflow/refdata"

// typoMaxDistance is the largest edit distance still treated as a likely
// typo of a well-known provider. A reference default, not a law of nature.
const typoMaxDistance = 2

// TypoSuggestion proposes a corrected domain for a near-miss of a known
// provider, e.g. gmial.com -> gmail.com.
type TypoSuggestion struct {
	Suggestion string  `json:"suggestion"`
	Distance   int     `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// SuggestDomain scans the well-known provider corpus for the closest match.
// An exact match or anything farther than typoMaxDistance yields no
// suggestion. Confidence grows as the distance shrinks relative to the
// domain length.
func SuggestDomain(domain string, providers *refdata.Set) (TypoSuggestion, bool) {
	best := TypoSuggestion{Distance: typoMaxDistance + 1}
	for _, candidate := range providers.Entries() {
		d := levenshtein(domain, candidate)
		if d == 0 {
			// Already a known provider, nothing to suggest.
			return TypoSuggestion{}, false
		}
		if d < best.Distance {
			best = TypoSuggestion{Suggestion: candidate, Distance: d}
		}
	}
	if best.Distance > typoMaxDistance {
		return TypoSuggestion{}, false
	}

	denom := len(domain)
	if len(best.Suggestion) > denom {
		denom = len(best.Suggestion)
	}
	best.Confidence = 1 - float64(best.Distance)/float64(denom)
	return best, true
}
