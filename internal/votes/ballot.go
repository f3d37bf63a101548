package votes

import (
	"strings"
	"unicode"
)

// Ballot maps a direction, or an OthersKey bucket, to the tokens that voted
// that way in text order.
type Ballot map[string][]string

var (
	markupCleaner = strings.NewReplacer("<br>", "", "<br/>", "", "<i>", "", "</i>", "")

	// Segments are concatenated without a separator ("afavor:ps,psdcontra:be"),
	// so every keyword is fenced with commas before splitting.
	directionFence = strings.NewReplacer(
		InFavor+":", ","+InFavor+",",
		Against+":", ","+Against+",",
		Abstention+":", ","+Abstention+",",
		Absence+":", ","+Absence+",",
	)
)

// vote is a single token of a ballot in arrival order.
type vote struct {
	direction string
	token     string
	party     bool
}

// ParseBallot parses ballot detail text such as
// "afavor:ps,psdcontra:be,1-psabstenção:il". Tokens outside the
// vocabulary land in the OthersKey bucket of their direction. Tokens before
// the first direction keyword are ignored. Empty input yields an empty
// Ballot.
func ParseBallot(detail string, vocab *Vocabulary) Ballot {
	out := Ballot{}
	for _, v := range scan(detail, orDefault(vocab)) {
		key := v.direction
		if !v.party {
			key = OthersKey(v.direction)
		}
		out[key] = append(out[key], v.token)
	}
	return out
}

func scan(detail string, vocab *Vocabulary) []vote {
	if detail == "" {
		return nil
	}

	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(detail))
	s = markupCleaner.Replace(s)
	s = directionFence.Replace(s)

	var votes []vote
	current := ""
	for _, tok := range strings.Split(s, ",") {
		switch {
		case tok == "":
			continue
		case isDirection(tok):
			current = tok
			continue
		case current == "":
			continue
		}

		tok = vocab.Canonical(tok)
		votes = append(votes, vote{direction: current, token: tok, party: vocab.IsParty(tok)})
	}
	return votes
}
