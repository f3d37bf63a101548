// Package composition reads the parliament organization dump of a
// legislature: who chairs the assembly, how many seats each party holds
// and who leads each parliamentary group.
package composition

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

// ErrUnrecognized is returned for documents without the organization root.
var ErrUnrecognized = errors.New("not a parliament organization dump")

const (
	rolePresident     = "Presidente"
	roleVicePresident = "Vice-Presidente"
	roleGroupLeader   = "Líder de Grupo Parlamentar"
	statusSitting     = "Efetivo"
)

type Member struct {
	Name string `json:"nome"`
	ID   string `json:"dep_id"`
}

type Party struct {
	Name     string  `json:"nome"`
	Deputies int     `json:"nr_deputados"`
	Share    float64 `json:"percentagem_deputados_total"`
	Leader   string  `json:"lider_de_bancada"`
}

// Composition is the make-up of a legislature.
type Composition struct {
	Legislature    string   `json:"legislatura"`
	President      *Member  `json:"presidente"`
	VicePresidents []Member `json:"vice_presidentes"`
	Parties        []Party  `json:"partidos"`
}

// PartyNames returns the seated parties in dump order.
func (c *Composition) PartyNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.Parties))
	for i, p := range c.Parties {
		names[i] = p.Name
	}
	return names
}

// Decode parses an organization dump.
func Decode(data []byte) (*Composition, error) {
	doc, err := raw.Parse(data)
	if err != nil {
		return nil, err
	}
	return Extract(doc)
}

// Extract builds the composition from a parsed organization dump.
func Extract(doc raw.Value) (*Composition, error) {
	org := doc.Get("OrganizacaoAR")
	if !org.Truthy() {
		return nil, ErrUnrecognized
	}

	c := &Composition{VicePresidents: []Member{}, Parties: []Party{}}
	chair(c, org.Get("MesaAR"))

	leaders := groupLeaders(org.Path("ConferenciaLideres", "HistoricoComposicao"))
	seats, order := seatCounts(org.Path("Plenario", "Composicao"))
	total := 0
	for _, n := range seats {
		total += n
	}
	for _, name := range order {
		c.Parties = append(c.Parties, Party{
			Name:     name,
			Deputies: seats[name],
			Share:    math.Round(float64(seats[name])/float64(total)*1000) / 10,
			Leader:   leaders[name],
		})
	}
	return c, nil
}

func chair(c *Composition, mesa raw.Value) {
	c.Legislature = mesa.Path("DetalheOrgao").Str("legDes", "")
	for _, m := range raw.ToList(mesa.Get("HistoricoComposicao")) {
		member := Member{Name: m.Str("depNomeParlamentar", ""), ID: m.Str("depId", "")}
		switch mostRecent(m.Get("depCargo"), "carDtInicio").Str("carDes", "") {
		case rolePresident:
			c.President = &member
		case roleVicePresident:
			c.VicePresidents = append(c.VicePresidents, member)
		}
	}
}

// seatCounts counts sitting deputies per party, returning the parties in
// order of first appearance.
func seatCounts(plenary raw.Value) (map[string]int, []string) {
	seats := make(map[string]int)
	var order []string
	for _, d := range raw.ToList(plenary) {
		status := mostRecent(d.Get("depSituacao"), "sioDtInicio").Str("sioDes", "")
		if !strings.Contains(status, statusSitting) {
			continue
		}
		party := mostRecent(d.Get("depGP"), "gpDtInicio").Str("gpSigla", "")
		if _, ok := seats[party]; !ok {
			order = append(order, party)
		}
		seats[party]++
	}
	return seats, order
}

func groupLeaders(conference raw.Value) map[string]string {
	leaders := make(map[string]string)
	for _, d := range raw.ToList(conference) {
		role := mostRecent(d.Get("depCargo"), "carDtInicio").Str("carDes", "")
		if !strings.Contains(role, roleGroupLeader) {
			continue
		}
		party := mostRecent(d.Get("depGP"), "gpDtInicio").Str("gpSigla", "")
		leaders[party] = d.Str("depNomeParlamentar", "")
	}
	return leaders
}

// mostRecent picks the status record with the latest start date. Dates are
// ISO formatted, so they compare as strings; on a tie the later record wins.
func mostRecent(history raw.Value, dateKey string) raw.Value {
	var best raw.Value
	bestDate := ""
	for _, h := range raw.ToList(history) {
		if d := h.Str(dateKey, ""); !best.Truthy() || d >= bestDate {
			best, bestDate = h, d
		}
	}
	return best
}

// String is a one-line summary for logs.
func (c *Composition) String() string {
	seats := 0
	for _, p := range c.Parties {
		seats += p.Deputies
	}
	return fmt.Sprintf("legislature %s, %d parties, %d seats", c.Legislature, len(c.Parties), seats)
}
