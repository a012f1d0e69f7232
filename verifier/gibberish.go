package verifier

import (
	"math"
	"strings"
)

// Thresholds for the gibberish heuristics. Tuned against obvious
// machine-generated local parts (random hex, keyboard mashing); real names
// sit comfortably below all three.
const (
	gibberishEntropyThreshold = 3.5
	gibberishConsonantRun     = 5
	gibberishRareBigramRatio  = 0.5
)

// Common English-ish bigrams; local parts made of mostly unseen bigrams are
// likely random.
var commonBigrams = buildBigramTable(
	"th he in er an re on at en nd ti es or te of ed is it al ar st to nt ng se " +
		"ha as ou io le ve co me de hi ri ro ic ne ea ra ce li ch ll be ma si om ur " +
		"ca el ta la ns di fo ho pe ec pr no ct us ac ot il tr ly nc et ut ss so rs " +
		"un lo wa ge ie wh ee wi em ad ol rt po we na ul ni ts mo ow pa im mi ai sh")

func buildBigramTable(s string) map[string]struct{} {
	t := make(map[string]struct{})
	for _, bg := range strings.Fields(s) {
		t[bg] = struct{}{}
	}
	return t
}

// GibberishResult is the bot-detector verdict for a local part.
type GibberishResult struct {
	IsGibberish     bool    `json:"is_gibberish"`
	Entropy         float64 `json:"entropy"`
	LongestConsRun  int     `json:"longest_consonant_run"`
	RareBigramRatio float64 `json:"rare_bigram_ratio"`
}

// DetectGibberish scores a local part by character entropy, consonant
// run-length and bigram rarity. Any single signal over its threshold flags
// the local part.
func DetectGibberish(local string) GibberishResult {
	letters := lettersOnly(local)

	r := GibberishResult{
		Entropy:         shannonEntropy(local),
		LongestConsRun:  longestConsonantRun(letters),
		RareBigramRatio: rareBigramRatio(letters),
	}
	r.IsGibberish = r.Entropy > gibberishEntropyThreshold ||
		r.LongestConsRun >= gibberishConsonantRun ||
		(len(letters) >= 6 && r.RareBigramRatio > gibberishRareBigramRatio)
	return r
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= 'a' && c <= 'z' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}
	var h float64
	n := float64(len([]rune(s)))
	for _, count := range freq {
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func longestConsonantRun(letters string) int {
	longest, run := 0, 0
	for i := 0; i < len(letters); i++ {
		if isVowel(letters[i]) {
			run = 0
			continue
		}
		run++
		if run > longest {
			longest = run
		}
	}
	return longest
}

func rareBigramRatio(letters string) float64 {
	if len(letters) < 2 {
		return 0
	}
	rare := 0
	total := len(letters) - 1
	for i := 0; i < total; i++ {
		if _, ok := commonBigrams[letters[i:i+2]]; !ok {
			rare++
		}
	}
	return float64(rare) / float64(total)
}
