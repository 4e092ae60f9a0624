package analysis

import (
	"strings"
	"unicode"
)

const (
	scoreExact     = 100
	scoreToken     = 60
	scoreSubstring = 30

	// substring matches are only tried for keywords at least this long
	minSubstringLen = 3
)

// ColumnResolver maps raw headers onto roles by fuzzy keyword scoring.
type ColumnResolver struct {
	keywords map[Role][]keyword
}

type keyword struct {
	compact string
	tokens  []string
}

type header struct {
	raw     string
	compact string
	tokens  []string
}

// NewColumnResolver builds a resolver over a keyword table. A nil table uses DefaultKeywords.
func NewColumnResolver(table KeywordTable) *ColumnResolver {
	if table == nil {
		table = DefaultKeywords()
	}
	table = table.clone()

	r := &ColumnResolver{keywords: make(map[Role][]keyword, len(table))}
	for role, words := range table {
		for _, w := range words {
			tokens := tokenize(w)
			if len(tokens) == 0 {
				continue
			}
			r.keywords[role] = append(r.keywords[role], keyword{
				compact: strings.Join(tokens, ""),
				tokens:  tokens,
			})
		}
	}
	return r
}

// Resolve maps headers to roles. The mapping is always returned, with a
// *MissingColumnsError when a required role could not be resolved.
func (r *ColumnResolver) Resolve(headers []string) (ColumnMapping, error) {
	parsed := make([]header, len(headers))
	for i, h := range headers {
		tokens := tokenize(h)
		parsed[i] = header{raw: h, compact: strings.Join(tokens, ""), tokens: tokens}
	}

	claimed := make([]bool, len(parsed))
	resolved := make(map[Role]string, len(Roles))

	for _, role := range Roles {
		best, bestScore := -1, 0
		for i, h := range parsed {
			if claimed[i] || h.compact == "" {
				continue
			}
			// strict > keeps the earliest column on ties
			if s := r.score(role, h); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best >= 0 {
			claimed[best] = true
			resolved[role] = parsed[best].raw
		}
	}

	mapping := NewColumnMapping(resolved)
	if missing := mapping.Missing(RequiredRoles); len(missing) > 0 {
		return mapping, &MissingColumnsError{Missing: missing, Headers: append([]string(nil), headers...)}
	}
	return mapping, nil
}

// score returns the best match of header h against the role's keywords.
// The match kind dominates; keyword position breaks ties between kinds.
func (r *ColumnResolver) score(role Role, h header) int {
	words := r.keywords[role]
	best := 0
	for idx, kw := range words {
		base := matchKind(kw, h)
		if base == 0 {
			continue
		}
		s := base*len(words) + (len(words) - idx)
		if s > best {
			best = s
		}
	}
	return best
}

func matchKind(kw keyword, h header) int {
	if kw.compact == h.compact {
		return scoreExact
	}
	if containsSequence(h.tokens, kw.tokens) {
		return scoreToken
	}
	if len(kw.compact) >= minSubstringLen && strings.Contains(h.compact, kw.compact) {
		return scoreSubstring
	}
	return 0
}

// containsSequence reports whether needle appears as a contiguous run in haystack.
func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

// tokenize lowercases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeHeader returns the compact lowercase form used for matching.
func NormalizeHeader(s string) string {
	return strings.Join(tokenize(s), "")
}
