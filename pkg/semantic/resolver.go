package semantic

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// candidate is one resolvable phrase in the precomputed lookup table.
type candidate struct {
	phrase string // lowered
	column string
	value  string // raw category value, empty for column/synonym phrases
	order  int    // declaration order in the artifact
}

// ResolvedQuery is a natural-language query annotated with the concrete
// column/value references found in it. Unresolved terms pass through
// unchanged; an empty resolution set is valid.
type ResolvedQuery struct {
	Query       string
	Resolutions []api.Resolution
}

// Resolve maps recognized terms of the query to dataset columns and raw
// category values. Matching is case-insensitive and longest-match-first
// so that "length of stay" wins over "length"; ties between candidates
// of equal length resolve to the mapping declared first in the artifact.
// Resolve is a pure function of the query and the loaded layer.
func (l *Layer) Resolve(query string) ResolvedQuery {
	lowered, offsets := foldQuery(query)
	consumed := make([]bool, len(lowered))

	type match struct {
		pos int
		res api.Resolution
	}
	var matches []match

	for _, c := range l.candidates {
		from := 0
		for {
			idx := strings.Index(lowered[from:], c.phrase)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(c.phrase)
			from = start + 1

			if !runeAligned(offsets, start) || !runeAligned(offsets, end) {
				continue
			}
			if !boundary(lowered, start, end) {
				continue
			}
			if anyConsumed(consumed, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				consumed[i] = true
			}
			matches = append(matches, match{
				pos: start,
				res: api.Resolution{
					Span:   query[offsets[start]:offsets[end]],
					Column: c.column,
					Value:  c.value,
				},
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	rq := ResolvedQuery{Query: query}
	for _, m := range matches {
		rq.Resolutions = append(rq.Resolutions, m.res)
	}
	return rq
}

// Columns returns the distinct resolved column names in query order.
func (rq ResolvedQuery) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range rq.Resolutions {
		if !seen[r.Column] {
			seen[r.Column] = true
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// foldQuery lowers the query for matching and records, per lowered
// byte, the original byte offset of the rune it came from (plus a final
// sentinel for len(query)). Lowercasing can change rune widths (İ is
// three bytes down to one, Ⱥ two up to three), so match indices on the
// lowered form must be mapped back before slicing the original.
func foldQuery(query string) (string, []int) {
	var b strings.Builder
	b.Grow(len(query))
	offsets := make([]int, 0, len(query)+1)
	for i, r := range query {
		lr := unicode.ToLower(r)
		for n := utf8.RuneLen(lr); n > 0; n-- {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(query))
	return b.String(), offsets
}

// runeAligned reports whether a lowered-byte offset starts a rune, so a
// byte-level match can never split a multibyte rune.
func runeAligned(offsets []int, i int) bool {
	return i == 0 || offsets[i] != offsets[i-1]
}

// boundary reports whether [start,end) sits on word boundaries, so a
// phrase never matches inside a longer word ("age" must not match
// "average"). Boundaries only apply where the phrase edge itself is
// alphanumeric; phrases like ">7" match regardless of neighbors.
func boundary(s string, start, end int) bool {
	if start > 0 && isWord(s[start]) && isWord(s[start-1]) {
		return false
	}
	if end < len(s) && isWord(s[end-1]) && isWord(s[end]) {
		return false
	}
	return true
}

func isWord(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func anyConsumed(consumed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}
