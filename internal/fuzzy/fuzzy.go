// Package fuzzy scores OCR tokens against reference name lists.
//
// Scores are integers in [0,100]. Ratio is the normalized edit similarity
// (substitutions cost two, so a ratio is 2*matches/total length);
// PartialRatio is the best Ratio of the shorter string against every
// equal-length window of the longer one.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Cutoffs used by the extractors.
const (
	DefaultCutoff = 60
	BossCutoff    = 70
)

var ratioParams = levenshtein.NewParams().SubCost(2)

// Match is one scored corpus entry. Query is the lookup string that
// produced it.
type Match struct {
	Value string
	Score int
	Index int
	Query string
}

// Options controls a catalog lookup.
type Options struct {
	Cutoff  int
	Partial bool
	Limit   int
}

// Normalize lowercases, drops non-ASCII runes and turns everything that is
// not a letter or digit into a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		space = true
	}
	return b.String()
}

// Ratio scores a against b without normalization.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return score(a, b)
}

func score(a, b string) int {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 0
	}
	dist := levenshtein.Distance(a, b, ratioParams)
	return int(math.RoundToEven(100 * float64(total-dist) / float64(total)))
}

// PartialRatio scores the shorter string against the best window of the longer.
func PartialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return score(string(short), string(long))
	}

	best := 0
	s := string(short)
	for start := 0; start+len(short) <= len(long); start++ {
		r := score(s, string(long[start:start+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Top returns up to opts.Limit corpus entries scoring at least opts.Cutoff
// against query, best first. Equal scores keep corpus order.
func Top(query string, corpus []string, opts Options) []Match {
	q := Normalize(query)
	if q == "" {
		return nil
	}
	scorer := Ratio
	if opts.Partial {
		scorer = PartialRatio
	}

	var matches []Match
	for i, entry := range corpus {
		s := scorer(q, Normalize(entry))
		if s >= opts.Cutoff {
			matches = append(matches, Match{Value: entry, Score: s, Index: i, Query: query})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Best returns the highest scoring corpus entry for query, first one on ties.
func Best(query string, corpus []string, opts Options) (Match, bool) {
	opts.Limit = 1
	top := Top(query, corpus, opts)
	if len(top) == 0 {
		return Match{}, false
	}
	return top[0], true
}

// BestOf tries every candidate and keeps the overall highest score.
// Ties go to the earlier candidate, then the earlier corpus entry.
func BestOf(candidates []string, corpus []string, opts Options) (Match, bool) {
	var best Match
	found := false
	for _, c := range candidates {
		m, ok := Best(c, corpus, opts)
		if ok && (!found || m.Score > best.Score) {
			best, found = m, true
		}
	}
	return best, found
}
