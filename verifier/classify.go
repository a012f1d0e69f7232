package verifier

import (
	"strings"

	"mailflow/refdata"
)

// Classification holds the static-list findings for one address. All lookups
// are read-only, so Classify is safe from any number of workers.
type Classification struct {
	IsDisposable    bool `json:"is_disposable"`
	IsRoleBased     bool `json:"is_role_based"`
	IsPaidDomain    bool `json:"is_paid_domain"`
	IsSuspiciousTLD bool `json:"is_suspicious_tld"`
	IsWellKnown     bool `json:"is_well_known"`
}

// Classify checks an address against the reference sets.
func Classify(addr Address, sets *refdata.Sets) Classification {
	return Classification{
		IsDisposable:    sets.Disposable.Contains(addr.Domain),
		IsRoleBased:     isRoleBased(addr.Local, sets.RolePrefixes),
		IsPaidDomain:    sets.PaidProviders.Contains(addr.Domain),
		IsSuspiciousTLD: sets.SuspiciousTLDs.Contains(addr.TLD),
		IsWellKnown:     sets.FreeProviders.Contains(addr.Domain),
	}
}

// isRoleBased matches the local part exactly or by prefix against the role
// list, so "support" and "support-eu" both count.
func isRoleBased(local string, roles *refdata.Set) bool {
	if roles.Contains(local) {
		return true
	}
	for _, prefix := range roles.Entries() {
		if strings.HasPrefix(local, prefix) {
			return true
		}
	}
	return false
}
