package normalizer

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// keywordMatcher finds which of an ordered list of entries has a keyword in
// a text, in one Aho-Corasick pass. The lowest matching entry index wins.
type keywordMatcher struct {
	mu      sync.Mutex // Match mutates the matcher's hit counters
	matcher *ahocorasick.Matcher
	owners  []int // pattern index -> entry index
}

// newKeywordMatcher builds a matcher where entries[i] lists the keywords of
// entry i. A keyword repeated across entries belongs to the first one.
func newKeywordMatcher(entries [][]string) *keywordMatcher {
	seen := make(map[string]bool)
	var patterns [][]byte
	var owners []int

	for i, keywords := range entries {
		for _, kw := range keywords {
			clean := strings.ToUpper(strings.TrimSpace(kw))
			if clean == "" || seen[clean] {
				continue
			}
			seen[clean] = true
			patterns = append(patterns, []byte(clean))
			owners = append(owners, i)
		}
	}

	k := &keywordMatcher{owners: owners}
	if len(patterns) > 0 {
		k.matcher = ahocorasick.NewMatcher(patterns)
	}
	return k
}

// first returns the lowest entry index with a keyword in text.
func (k *keywordMatcher) first(text string) (int, bool) {
	if k.matcher == nil {
		return 0, false
	}
	k.mu.Lock()
	hits := k.matcher.Match([]byte(strings.ToUpper(text)))
	k.mu.Unlock()

	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(k.owners) {
			continue
		}
		if owner := k.owners[idx]; best < 0 || owner < best {
			best = owner
		}
	}
	return best, best >= 0
}
