// Package rename maps observed CSV data-column headers onto a procedure
// schema's canonical column names, using normalization first and an
// ordered table of regex synonyms second.
package rename

import (
	"regexp"
	"strings"

	"github.com/joaquim-mph/optostage/internal/schema"
)

// SynonymRule is one entry in the ordered regex-synonym table: Pattern is
// matched against the normalized observed name, and Canonical is the
// schema-declared column name it resolves to.
type SynonymRule struct {
	Pattern   *regexp.Regexp
	Canonical string
}

// DefaultSynonyms covers the column aliases this lab's instruments are
// known to emit. Evaluated first-match-wins, so more specific patterns
// should precede more general ones.
var DefaultSynonyms = []SynonymRule{
	{regexp.MustCompile(`^vds$`), "Vsd (V)"},
	{regexp.MustCompile(`^vsd$`), "Vsd (V)"},
	{regexp.MustCompile(`^vg$`), "Vg (V)"},
	{regexp.MustCompile(`^ig$`), "Ig (A)"},
	{regexp.MustCompile(`^ids$`), "I (A)"},
	{regexp.MustCompile(`^isd$`), "I (A)"},
	{regexp.MustCompile(`^t$`), "t (s)"},
}

var parenUnit = regexp.MustCompile(`\s*\([^)]*\)\s*`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize strips whitespace, collapses internal runs of whitespace,
// lowercases, and removes every parenthetical group, such as a unit.
func normalize(name string) string {
	s := strings.TrimSpace(name)
	s = parenUnit.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// Result is the output of Resolve: the observed→canonical rename mapping
// (kept unmatched columns map to themselves), the columns to drop (unmatched
// columns in drop mode, and the second column of an ambiguous pair), and any
// ColumnAmbiguous warnings produced when two observed columns would
// otherwise map to the same canonical target.
type Result struct {
	Renamed   map[string]string
	Unmatched []string
	Warnings  []string
}

// Mode mirrors cast.Mode: whether unmatched columns are kept (under their
// original name) or dropped.
type Mode int

const (
	ModeKeepUnmatched Mode = iota
	ModeDropUnmatched
)

// Resolve builds the observed→canonical mapping for one procedure's
// observed data-column headers. The mapping is guaranteed to be a function:
// if two observed columns would map to the same canonical name, the first
// in file order wins and the second is recorded as a warning and treated as
// unmatched.
func Resolve(observed []string, dataFields map[string]schema.FieldSpec, synonyms []SynonymRule, mode Mode) Result {
	canonicalByNormalized := make(map[string]string, len(dataFields))
	for canonical := range dataFields {
		canonicalByNormalized[normalize(canonical)] = canonical
	}

	result := Result{Renamed: make(map[string]string, len(observed))}
	usedCanonical := make(map[string]string, len(observed))

	for _, col := range observed {
		norm := normalize(col)

		canonical, matched := canonicalByNormalized[norm]
		if !matched {
			for _, rule := range synonyms {
				if rule.Pattern.MatchString(norm) {
					canonical = rule.Canonical
					matched = true
					break
				}
			}
		}

		if !matched {
			if mode == ModeKeepUnmatched {
				result.Renamed[col] = col
			} else {
				result.Unmatched = append(result.Unmatched, col)
			}
			continue
		}

		if firstObserved, taken := usedCanonical[canonical]; taken {
			result.Warnings = append(result.Warnings,
				"ColumnAmbiguous: both \""+firstObserved+"\" and \""+col+"\" map to \""+canonical+"\"; dropped \""+col+"\"")
			result.Unmatched = append(result.Unmatched, col)
			continue
		}

		usedCanonical[canonical] = col
		result.Renamed[col] = canonical
	}

	return result
}
