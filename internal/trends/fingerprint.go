package trends

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// duplicateScoreThreshold is the cosine-similarity cutoff above which two
// content items are treated as the same story crossposted elsewhere.
const duplicateScoreThreshold = 0.92

// textFingerprint hashes item's title+content into a fixed-width, unit-norm
// bag-of-words vector so near-identical text lands close together under
// cosine similarity. This is a cheap standalone stand-in for a real text
// embedding model — CreatorPulse has no embedding endpoint in its LLM
// gateway, only single-shot generation — good enough for the near-duplicate
// collapsing this detector actually needs.
func textFingerprint(item persistence.ContentItem, dim int) ([]float32, bool) {
	if dim <= 0 {
		return nil, false
	}
	words := tokenize(item.Title + " " + item.Content)
	if len(words) == 0 {
		return nil, false
	}
	vec := make([]float32, dim)
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, false
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
