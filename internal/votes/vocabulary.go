// Package votes parses ballot detail text and projects flattened stage rows
// into per-party vote columns.
package votes

import "strings"

// Vote directions as they appear, lowercased, in ballot detail text.
const (
	InFavor    = "afavor"
	Against    = "contra"
	Abstention = "abstenção"
	Absence    = "ausência"
)

// Directions lists every direction keyword.
var Directions = []string{InFavor, Against, Abstention, Absence}

const othersPrefix = "outros_"

// OthersKey is the Ballot bucket of deputies voting dir apart from their
// party's declared position.
func OthersKey(dir string) string {
	return othersPrefix + dir
}

func isDirection(tok string) bool {
	for _, d := range Directions {
		if tok == d {
			return true
		}
	}
	return false
}

// DefaultParties are the ballot tokens of parliamentary groups and of
// unregistered members who vote in their own name.
var DefaultParties = []string{
	"ps", "psd", "be", "pcp", "cds-pp", "pan", "pev", "ch", "il", "l",
	"cr", "jkm", "ama", "mar",
}

// DefaultAliases map descriptive ballot names of unregistered members
// (whitespace already stripped) to their short token.
var DefaultAliases = map[string]string{
	"cristinarodrigues(ninsc)":   "cr",
	"joacinekatarmoreira(ninsc)": "jkm",
	"antóniomalódeabreu(ninsc)":  "ama",
	"miguelarruda(ninsc)":        "mar",
}

// DefaultAuthorAliases map resolved author names of unregistered members
// to their ballot token.
var DefaultAuthorAliases = map[string]string{
	"cristina rodrigues":    "cr",
	"joacine katar moreira": "jkm",
	"antónio maló de abreu": "ama",
	"miguel arruda":         "mar",
}

// Vocabulary is the fixed set of recognized party tokens plus the alias
// tables used to canonicalize ballot tokens and authors. It is read-only
// once built.
type Vocabulary struct {
	parties       []string
	known         map[string]bool
	aliases       map[string]string
	authorAliases map[string]string
}

// NewVocabulary builds a vocabulary. Tokens and aliases are lowercased.
func NewVocabulary(parties []string, aliases, authorAliases map[string]string) *Vocabulary {
	v := &Vocabulary{
		known:         make(map[string]bool, len(parties)),
		aliases:       make(map[string]string, len(aliases)),
		authorAliases: make(map[string]string, len(authorAliases)),
	}
	for _, p := range parties {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || v.known[p] {
			continue
		}
		v.known[p] = true
		v.parties = append(v.parties, p)
	}
	for k, tok := range aliases {
		v.aliases[strings.ToLower(k)] = strings.ToLower(tok)
	}
	for k, tok := range authorAliases {
		v.authorAliases[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(tok)
	}
	return v
}

// DefaultVocabulary returns the vocabulary of legislatures XIV to XVI.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultParties, DefaultAliases, DefaultAuthorAliases)
}

// Parties returns the recognized party tokens in canonical order.
func (v *Vocabulary) Parties() []string {
	return append([]string(nil), v.parties...)
}

// IsParty reports whether tok is a recognized party token.
func (v *Vocabulary) IsParty(tok string) bool {
	return v.known[tok]
}

// Canonical rewrites a known alias to its short token.
func (v *Vocabulary) Canonical(tok string) string {
	if short, ok := v.aliases[tok]; ok {
		return short
	}
	return tok
}

// AuthorToken maps a resolved author ("PS", "Cristina Rodrigues") to the
// token of its vote column.
func (v *Vocabulary) AuthorToken(author string) string {
	a := strings.ToLower(strings.TrimSpace(author))
	if tok, ok := v.authorAliases[a]; ok {
		return tok
	}
	return a
}

// order sorts tokens by their position in the vocabulary.
func (v *Vocabulary) order(tokens map[string]bool) []string {
	out := make([]string, 0, len(tokens))
	for _, p := range v.parties {
		if tokens[p] {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(v *Vocabulary) *Vocabulary {
	if v == nil {
		return DefaultVocabulary()
	}
	return v
}
