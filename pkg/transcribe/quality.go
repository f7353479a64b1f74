package transcribe

import (
	"math"
	"strings"
)

// Combine joins segment texts longer than one character and derives a
// confidence as exp(mean AvgLogProb) over the kept segments. hasConf is
// false when no kept segment carried a log-probability.
func Combine(segs []Segment) (text string, conf float64, hasConf bool) {
	var parts []string
	var sum float64
	var n int
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if len([]rune(t)) <= 1 {
			continue
		}
		parts = append(parts, t)
		if s.HasLogProb {
			sum += s.AvgLogProb
			n++
		}
	}
	if n > 0 {
		conf, hasConf = math.Exp(sum/float64(n)), true
	}
	return strings.Join(parts, " "), conf, hasConf
}

// Rejection explains why a result was filtered.
type Rejection string

const (
	Accepted      Rejection = ""
	TooShort      Rejection = "too short"
	LowConfidence Rejection = "low confidence"
	Repetitive    Rejection = "repetitive"
)

// Check applies the quality filter to a combined result.
func (c Config) Check(text string, conf float64, hasConf bool) Rejection {
	if len([]rune(strings.TrimSpace(text))) < 2 {
		return TooShort
	}
	if hasConf && conf < c.MinConfidence {
		return LowConfidence
	}
	words := strings.Fields(text)
	if len(words) > c.MinWords {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < c.MinUniqueRate {
			return Repetitive
		}
	}
	return Accepted
}
