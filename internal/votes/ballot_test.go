package votes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBallotMixedDissenters(t *testing.T) {
	detail := "afavor:ps,cds-pp,pan,ch,cr,1-psd,2-be,contra:2-ps,2-psd,be,pcp,pev,il,abstenção:3-ps,1-be,psd,jkm"

	got := ParseBallot(detail, nil)

	assert.Equal(t, Ballot{
		InFavor:               {"ps", "cds-pp", "pan", "ch", "cr"},
		Against:               {"be", "pcp", "pev", "il"},
		Abstention:            {"psd", "jkm"},
		OthersKey(InFavor):    {"1-psd", "2-be"},
		OthersKey(Against):    {"2-ps", "2-psd"},
		OthersKey(Abstention): {"3-ps", "1-be"},
	}, got)
}

func TestParseBallotEmpty(t *testing.T) {
	assert.Empty(t, ParseBallot("", nil))
	assert.Empty(t, ParseBallot("   <br>", nil))
}

func TestParseBallotSourceFormatting(t *testing.T) {
	detail := "A Favor: <i>PS</i>, PSD<BR>Contra: BE, Cristina Rodrigues (Ninsc)<br/>Ausência: IL"

	got := ParseBallot(detail, nil)

	assert.Equal(t, []string{"ps", "psd"}, got[InFavor])
	assert.Equal(t, []string{"be", "cr"}, got[Against])
	assert.Equal(t, []string{"il"}, got[Absence])
	assert.Len(t, got, 3)
}

func TestParseBallotIgnoresTokensBeforeFirstDirection(t *testing.T) {
	got := ParseBallot("ps,psd,contra:be", nil)
	assert.Equal(t, Ballot{Against: {"be"}}, got)
}

func TestParseBallotUnknownTokensAreOthers(t *testing.T) {
	got := ParseBallot("afavor:ps,xyz,,contra:1-ch", nil)
	assert.Equal(t, Ballot{
		InFavor:            {"ps"},
		OthersKey(InFavor): {"xyz"},
		OthersKey(Against): {"1-ch"},
	}, got)
}

func TestParseBallotSegmentOrderDoesNotMatter(t *testing.T) {
	segments := []string{
		"afavor:ps,psd,1-be,",
		"contra:be,pcp",
		"abstenção:il,2-ps,",
		"ausência:ch",
	}
	want := ParseBallot(strings.Join(segments, ""), nil)

	for _, perm := range permutations(segments) {
		detail := strings.Join(perm, "")
		assert.Equal(t, want, ParseBallot(detail, nil), detail)
	}
}

func TestParseBallotCustomVocabulary(t *testing.T) {
	vocab := NewVocabulary([]string{"A", "b"}, map[string]string{"longname": "a"}, nil)

	got := ParseBallot("afavor:longname,ps,contra:B", vocab)

	assert.Equal(t, Ballot{
		InFavor:            {"a"},
		OthersKey(InFavor): {"ps"},
		Against:            {"b"},
	}, got)
}

func permutations(items []string) [][]string {
	if len(items) <= 1 {
		return [][]string{append([]string(nil), items...)}
	}
	var out [][]string
	for i := range items {
		rest := make([]string, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{items[i]}, p...))
		}
	}
	return out
}
