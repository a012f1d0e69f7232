package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailflow/refdata"
)

func testSets() *refdata.Sets {
	return &refdata.Sets{
		Disposable:     refdata.NewSet("mailinator.com\ntrashmail.com\n"),
		SuspiciousTLDs: refdata.NewSet("tk\nml\nxyz\n"),
		RolePrefixes:   refdata.NewSet("admin\nsupport\ninfo\nnoreply\n"),
		FreeProviders:  refdata.NewSet("gmail.com\nyahoo.com\noutlook.com\n"),
		PaidProviders:  refdata.NewSet("protonmail.com\nfastmail.com\n"),
		GivenNames:     refdata.NewGenderTable("john m\nmary f\n"),
	}
}

func mustParse(t *testing.T, email string) Address {
	t.Helper()
	addr, err := ParseAddress(email)
	require.NoError(t, err)
	return addr
}

func TestClassify(t *testing.T) {
	sets := testSets()

	t.Run("disposable", func(t *testing.T) {
		c := Classify(mustParse(t, "user@mailinator.com"), sets)
		assert.True(t, c.IsDisposable)
		assert.False(t, c.IsWellKnown)
	})

	t.Run("role based exact", func(t *testing.T) {
		c := Classify(mustParse(t, "admin@example.com"), sets)
		assert.True(t, c.IsRoleBased)
	})

	t.Run("role based prefix", func(t *testing.T) {
		c := Classify(mustParse(t, "support-eu@example.com"), sets)
		assert.True(t, c.IsRoleBased)
	})

	t.Run("personal local part", func(t *testing.T) {
		c := Classify(mustParse(t, "john.smith@example.com"), sets)
		assert.False(t, c.IsRoleBased)
	})

	t.Run("well known free provider", func(t *testing.T) {
		c := Classify(mustParse(t, "john@gmail.com"), sets)
		assert.True(t, c.IsWellKnown)
		assert.False(t, c.IsPaidDomain)
	})

	t.Run("paid provider", func(t *testing.T) {
		c := Classify(mustParse(t, "john@fastmail.com"), sets)
		assert.True(t, c.IsPaidDomain)
	})

	t.Run("suspicious tld", func(t *testing.T) {
		c := Classify(mustParse(t, "john@freebies.tk"), sets)
		assert.True(t, c.IsSuspiciousTLD)
	})
}
