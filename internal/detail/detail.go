// Package detail builds the typed view of a single initiative, as served by
// the initiative detail endpoint.
package detail

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

var (
	// ErrNotFound is returned when no initiative has the requested id.
	ErrNotFound = errors.New("initiative not found")

	// ErrAmbiguousInitiative is returned when several initiatives share an id.
	ErrAmbiguousInitiative = errors.New("initiative id is not unique")

	// ErrUnknownInitiativeType is returned for initiative types without a
	// detail view.
	ErrUnknownInitiativeType = errors.New("initiative type not implemented")
)

// Initiative types with a detail view.
const (
	TypeBill     = "J" // Projeto de Lei
	TypeProposal = "P" // Proposta de Lei
)

var typeNames = map[string]string{
	TypeBill:     "Projecto de Lei",
	TypeProposal: "Proposta de Lei",
}

// Author origins.
const (
	OriginGroup      = "Grupo Parlamentar"
	OriginCitizens   = "Grupo Cidadãos"
	OriginGovernment = "Governo"
)

type Initiative struct {
	ID          int         `json:"id"`
	Number      int         `json:"numero"`
	Title       string      `json:"titulo"`
	Type        string      `json:"tipo"`
	Author      Author      `json:"autor"`
	Stages      []Stage     `json:"fases"`
	DocumentURL string      `json:"documento_url"`
	Attachment  *Attachment `json:"anexo,omitempty"`
	Legislature string      `json:"legislatura"`
}

type Author struct {
	Origin   string   `json:"origem"`
	Deputies []Deputy `json:"deputados"`
}

type Deputy struct {
	ID    int    `json:"id"`
	Name  string `json:"nome"`
	Party string `json:"sigla_grupo_parlamentar"`
}

type Stage struct {
	ID         int         `json:"id"`
	Event      string      `json:"evento"`
	Note       string      `json:"nota_evento,omitempty"`
	Date       string      `json:"data"`
	Attachment *Attachment `json:"anexo,omitempty"`
}

type Attachment struct {
	Name string `json:"nome"`
	URL  string `json:"ficheiro_url"`
}

// Lookup finds the initiative with the given id and builds its view.
func Lookup(items []raw.Value, id int) (*Initiative, error) {
	v, err := Find(items, id)
	if err != nil {
		return nil, err
	}
	return Build(v)
}

// Find returns the raw initiative with the given id.
func Find(items []raw.Value, id int) (raw.Value, error) {
	want := strconv.Itoa(id)

	var found []raw.Value
	for _, item := range items {
		if text(item, "IniId") == want {
			found = append(found, item)
		}
	}

	switch len(found) {
	case 0:
		return raw.Value{}, fmt.Errorf("initiative %d: %w", id, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return raw.Value{}, fmt.Errorf("initiative %d (%d matches): %w", id, len(found), ErrAmbiguousInitiative)
	}
}

// Build returns the typed view of a bill or a government proposal. Any other
// type fails with ErrUnknownInitiativeType.
func Build(v raw.Value) (*Initiative, error) {
	typ := text(v, "IniTipo")
	name, ok := typeNames[typ]
	if !ok {
		desc := text(v, "IniDescTipo")
		if desc == "" {
			desc = typ
		}
		return nil, fmt.Errorf("%s: %w", desc, ErrUnknownInitiativeType)
	}

	id, err := number(v, "IniId")
	if err != nil {
		return nil, err
	}
	nr, err := number(v, "IniNr")
	if err != nil {
		return nil, err
	}

	ini := &Initiative{
		ID:          id,
		Number:      nr,
		Title:       text(v, "IniTitulo"),
		Type:        name,
		Author:      Author{Origin: Origin(v.Get("IniAutorOutros").Str("sigla", ""))},
		DocumentURL: text(v, "IniLinkTexto"),
		Legislature: text(v, "IniLeg"),
		Stages:      []Stage{},
		Attachment:  attachment(first(raw.ToList(v.Get("IniAnexos")))),
	}

	for _, d := range raw.ToList(v.Get("IniAutorDeputados")) {
		depID, _ := strconv.Atoi(text(d, "idCadastro"))
		ini.Author.Deputies = append(ini.Author.Deputies, Deputy{
			ID:    depID,
			Name:  text(d, "nome"),
			Party: text(d, "GP"),
		})
	}

	for _, e := range raw.ToList(v.Get("IniEventos")) {
		sid := text(e, "OevId")
		if sid == "" {
			sid = text(e, "EvtId")
		}
		stageID, _ := strconv.Atoi(sid)
		ini.Stages = append(ini.Stages, Stage{
			ID:         stageID,
			Event:      text(e, "Fase"),
			Note:       text(e, "ObsFase"),
			Date:       text(e, "DataFase"),
			Attachment: attachment(first(raw.ToList(e.Get("AnexosFase")))),
		})
	}
	return ini, nil
}

// Origin maps the author origin acronym of the feed.
func Origin(sigla string) string {
	switch sigla {
	case "G":
		return OriginGroup
	case "Z":
		return OriginCitizens
	default:
		return OriginGovernment
	}
}

func attachment(v raw.Value) *Attachment {
	if !v.Truthy() {
		return nil
	}
	return &Attachment{Name: text(v, "anexoNome"), URL: text(v, "anexoFich")}
}

func text(v raw.Value, key string) string {
	return strings.TrimSpace(v.Str(key, ""))
}

func number(v raw.Value, key string) (int, error) {
	s := text(v, key)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("initiative field %s=%q: %w", key, s, err)
	}
	return n, nil
}

func first(items []raw.Value) raw.Value {
	if len(items) == 0 {
		return raw.Value{}
	}
	return items[0]
}
