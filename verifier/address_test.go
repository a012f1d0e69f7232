package verifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "user@example.com", true},
		{"dotted local", "john.smith@example.com", true},
		{"plus tag", "user+tag@example.com", true},
		{"mixed case normalized", "User@EXAMPLE.com", true},
		{"surrounding whitespace", "  user@example.com  ", true},
		{"empty", "", false},
		{"missing at", "userexample.com", false},
		{"missing domain", "user@", false},
		{"missing tld", "user@example", false},
		{"double at", "a@b@example.com", false},
		{"leading dot local", ".user@example.com", false},
		{"trailing dot local", "user.@example.com", false},
		{"consecutive dots", "us..er@example.com", false},
		{"space inside", "us er@example.com", false},
		{"numeric tld", "user@example.123", false},
		{"local too long", strings.Repeat("a", 65) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if !tt.valid {
				require.Error(t, err)
				var se *SyntaxError
				require.ErrorAs(t, err, &se)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user@example.com", strings.Replace(addr.Raw, addr.Local, "user", 1))
			assert.Equal(t, "example.com", addr.Domain)
			assert.Equal(t, "com", addr.TLD)
		})
	}
}

func TestParseAddressNormalizes(t *testing.T) {
	addr, err := ParseAddress(" John.Smith@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "john.smith@example.com", addr.Raw)
	assert.Equal(t, "john.smith", addr.Local)
	assert.Equal(t, "example.com", addr.Domain)
}
