package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSets(t *testing.T) {
	sets := Load()

	require.NotZero(t, sets.Disposable.Len())
	require.NotZero(t, sets.SuspiciousTLDs.Len())
	require.NotZero(t, sets.RolePrefixes.Len())
	require.NotZero(t, sets.FreeProviders.Len())
	require.NotZero(t, sets.PaidProviders.Len())
	require.NotZero(t, sets.GivenNames.Len())

	assert.True(t, sets.Disposable.Contains("mailinator.com"))
	assert.True(t, sets.FreeProviders.Contains("gmail.com"))
	assert.True(t, sets.SuspiciousTLDs.Contains("tk"))
	assert.True(t, sets.RolePrefixes.Contains("admin"))
	assert.False(t, sets.Disposable.Contains("example.com"))
}

func TestSetParsing(t *testing.T) {
	s := NewSet("# comment\nFoo.Com\n\n  bar.org  \n")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("foo.com"))
	assert.True(t, s.Contains("FOO.COM"))
	assert.True(t, s.Contains("bar.org"))
	assert.False(t, s.Contains("# comment"))
}

func TestSetEntriesAreStable(t *testing.T) {
	s := NewSet("a.com\nb.com\nA.COM\n")
	e1 := s.Entries()
	e2 := s.Entries()

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a.com", "b.com"}, e1)
	assert.Same(t, &e1[0], &e2[0], "repeated calls must not allocate a fresh copy")
}

func TestGenderTable(t *testing.T) {
	table := NewGenderTable("john m\nmary f\nkelly mf\ncasey a\nbroken\nweird x\n")
	assert.Equal(t, 4, table.Len())

	e, ok := table.Lookup("John")
	require.True(t, ok)
	assert.Equal(t, "male", e.Gender)
	assert.Equal(t, TierHigh, e.Tier)

	e, ok = table.Lookup("kelly")
	require.True(t, ok)
	assert.Equal(t, "mostly_female", e.Gender)
	assert.Equal(t, TierMedium, e.Tier)

	e, ok = table.Lookup("casey")
	require.True(t, ok)
	assert.Equal(t, TierLow, e.Tier)

	_, ok = table.Lookup("nobody")
	assert.False(t, ok)
}
