package verifier

import (
	"strings"

	"mailflow/refdata"
)

// Demographics is a best-effort guess at the person behind a local part.
type Demographics struct {
	LikelyName   string `json:"likely_name,omitempty"`
	LikelyGender string `json:"likely_gender"`
	Confidence   string `json:"confidence"`
}

// InferDemographics takes the first name-like token of the local part
// (john.smith.123 -> john) and looks it up in the given-name table.
func InferDemographics(local string, names *refdata.GenderTable) Demographics {
	token := firstNameToken(local)
	if token == "" {
		return Demographics{LikelyGender: "unknown", Confidence: string(refdata.TierLow)}
	}

	entry, ok := names.Lookup(token)
	if !ok {
		return Demographics{
			LikelyName:   capitalize(token),
			LikelyGender: "unknown",
			Confidence:   string(refdata.TierLow),
		}
	}
	return Demographics{
		LikelyName:   capitalize(token),
		LikelyGender: entry.Gender,
		Confidence:   string(entry.Tier),
	}
}

// firstNameToken strips everything from the first separator or digit on.
func firstNameToken(local string) string {
	end := len(local)
	for i := 0; i < len(local); i++ {
		c := local[i]
		if c == '.' || c == '_' || c == '-' || c == '+' || (c >= '0' && c <= '9') {
			end = i
			break
		}
	}
	return strings.ToLower(local[:end])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
