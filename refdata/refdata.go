// Package refdata holds the static reference sets the verification engine
// classifies against: disposable-provider domains, suspicious TLDs, role
// local-part prefixes, well-known and paid mail providers, and a given-name
// gender table. Everything is embedded at build time, loaded once, and
// read-only afterwards, so the sets are safe for concurrent use.
package refdata

import (
	"bufio"
	_ "embed"
	"strings"
)

//go:embed data/disposable_domains.txt
var disposableRaw string

//go:embed data/suspicious_tlds.txt
var suspiciousTLDRaw string

//go:embed data/role_prefixes.txt
var rolePrefixRaw string

//go:embed data/free_email_domains.txt
var freeProviderRaw string

//go:embed data/paid_email_domains.txt
var paidProviderRaw string

//go:embed data/given_names.txt
var givenNameRaw string

// Set is a case-insensitive membership set loaded from a line-oriented file.
type Set struct {
	members map[string]struct{}
	entries []string
}

// NewSet parses one entry per line. Blank lines and lines starting with '#'
// are skipped; entries are lowercased and deduplicated.
func NewSet(raw string) *Set {
	s := &Set{members: make(map[string]struct{})}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry := strings.ToLower(line)
		if _, dup := s.members[entry]; dup {
			continue
		}
		s.members[entry] = struct{}{}
		s.entries = append(s.entries, entry)
	}
	return s
}

// Contains reports whether v is in the set.
func (s *Set) Contains(v string) bool {
	_, ok := s.members[strings.ToLower(v)]
	return ok
}

// Len returns the number of entries.
func (s *Set) Len() int { return len(s.members) }

// Entries returns the set's members in file order. The slice is shared, not
// copied; callers must treat it as read-only.
func (s *Set) Entries() []string { return s.entries }

// GenderTier is a discrete confidence level for a gender guess.
type GenderTier string

const (
	TierHigh   GenderTier = "high"
	TierMedium GenderTier = "medium"
	TierLow    GenderTier = "low"
)

// GenderEntry is one row of the given-name table.
type GenderEntry struct {
	Gender string
	Tier   GenderTier
}

// GenderTable maps lowercased given names to a gender label and tier.
type GenderTable struct {
	names map[string]GenderEntry
}

// label codes in data/given_names.txt follow the gender_guesser convention:
// m/f are firm, mm/mf lean one way, a is androgynous.
var genderLabels = map[string]GenderEntry{
	"m":  {Gender: "male", Tier: TierHigh},
	"f":  {Gender: "female", Tier: TierHigh},
	"mm": {Gender: "mostly_male", Tier: TierMedium},
	"mf": {Gender: "mostly_female", Tier: TierMedium},
	"a":  {Gender: "androgynous", Tier: TierLow},
}

// NewGenderTable parses "name label" lines.
func NewGenderTable(raw string) *GenderTable {
	t := &GenderTable{names: make(map[string]GenderEntry)}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		entry, ok := genderLabels[strings.ToLower(fields[1])]
		if !ok {
			continue
		}
		t.names[strings.ToLower(fields[0])] = entry
	}
	return t
}

// Lookup returns the entry for a given name, if known.
func (t *GenderTable) Lookup(name string) (GenderEntry, bool) {
	e, ok := t.names[strings.ToLower(name)]
	return e, ok
}

// Len returns the number of names in the table.
func (t *GenderTable) Len() int { return len(t.names) }

// Sets bundles every reference set the engine needs. Built once at startup
// and shared read-only between all workers.
type Sets struct {
	Disposable     *Set
	SuspiciousTLDs *Set
	RolePrefixes   *Set
	FreeProviders  *Set
	PaidProviders  *Set
	GivenNames     *GenderTable
}

// Load builds the full bundle from the embedded data files.
func Load() *Sets {
	return &Sets{
		Disposable:     NewSet(disposableRaw),
		SuspiciousTLDs: NewSet(suspiciousTLDRaw),
		RolePrefixes:   NewSet(rolePrefixRaw),
		FreeProviders:  NewSet(freeProviderRaw),
		PaidProviders:  NewSet(paidProviderRaw),
		GivenNames:     NewGenderTable(givenNameRaw),
	}
}
