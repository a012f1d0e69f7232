package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectGibberishRealNames(t *testing.T) {
	for _, local := range []string{"mary", "david", "john.smith", "anna_lee", "contact"} {
		r := DetectGibberish(local)
		assert.False(t, r.IsGibberish, "local %q flagged: %+v", local, r)
	}
}

func TestDetectGibberishRandomStrings(t *testing.T) {
	t.Run("long consonant run", func(t *testing.T) {
		r := DetectGibberish("xrtplkqz")
		assert.True(t, r.IsGibberish)
		assert.GreaterOrEqual(t, r.LongestConsRun, gibberishConsonantRun)
	})

	t.Run("high entropy", func(t *testing.T) {
		r := DetectGibberish("q8x7z6w5k4j3")
		assert.True(t, r.IsGibberish)
		assert.Greater(t, r.Entropy, gibberishEntropyThreshold)
	})
}

func TestShannonEntropy(t *testing.T) {
	assert.Zero(t, shannonEntropy(""))
	assert.Zero(t, shannonEntropy("aaaa"))
	assert.InDelta(t, 2.0, shannonEntropy("abcd"), 1e-9)
}

func TestLongestConsonantRun(t *testing.T) {
	assert.Equal(t, 0, longestConsonantRun("aeiou"))
	assert.Equal(t, 2, longestConsonantRun("hello"))
	assert.Equal(t, 8, longestConsonantRun("xrtplkqz"))
}
