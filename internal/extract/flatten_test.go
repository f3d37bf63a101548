package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

const fixture = `[
  {
    "IniId": "120001",
    "IniNr": "12",
    "IniDescTipo": "Projeto de Lei",
    "IniTitulo": "Altera o regime do arrendamento",
    "IniLinkTexto": "https://example.pt/12.pdf",
    "IniAutorGruposParlamentares": {"GP": "BE"},
    "IniAutorOutros": {"nome": "Grupos Parlamentares", "sigla": "G"},
    "IniAutorDeputados": [
      {"nome": "Ana Silva", "GP": "BE"},
      {"nome": "Rui Costa", "GP": "BE"}
    ],
    "IniAnexos": [
      {"anexoNome": "Parecer", "anexoFich": "https://example.pt/a.pdf"},
      {"anexoNome": "Nota", "anexoFich": "https://example.pt/b.pdf"}
    ],
    "IniEventos": [
      {"Fase": "Entrada", "DataFase": "2024-04-02", "EvtId": "1"},
      {
        "Fase": "Votação na generalidade",
        "DataFase": "2024-05-10",
        "EvtId": "2",
        "ObsFase": "Com a presença de 200 deputados",
        "PublicacaoFase": {"pubTipo": "DAR I série", "URLDiario": "https://dar/1", "pag": ["4", "5"]},
        "Intervencoesdebates": [
          {"oradores": [
            {"deputados": {"nome": "Ana Silva", "GP": "BE"}, "linkVideo": {"link": "https://v/1"}},
            {"membrosGoverno": {"nome": "Maria", "cargo": "Ministra"}}
          ]}
        ],
        "Votacao": [
          {"resultado": "Rejeitado", "unanime": "", "detalhe": "A Favor: BE<BR>Contra: PS"},
          {"resultado": "Aprovado", "detalhe": "ignored"}
        ],
        "Comissao": {"Nome": "Comissão de Habitação", "Competente": "S", "Votacao": {"resultado": "Aprovado", "unanime": "unanime"}}
      }
    ]
  },
  {
    "IniId": "120002",
    "IniTitulo": "Sem eventos"
  },
  {
    "IniId": "120003",
    "IniTitulo": "Proposta do Governo",
    "IniAutorOutros": {"nome": "Governo", "sigla": "V"},
    "IniEventos": {"Fase": "Entrada", "DataFase": "2024-06-01"}
  }
]`

func loadFixture(t *testing.T) []raw.Value {
	t.Helper()
	items, err := raw.DecodeFeed([]byte(fixture))
	require.NoError(t, err)
	return items
}

func TestFlattenRowCountFollowsEvents(t *testing.T) {
	rows := Flatten(loadFixture(t))

	require.Len(t, rows, 3)
	assert.Equal(t, "120001", rows[0].InitiativeID)
	assert.Equal(t, "120001", rows[1].InitiativeID)
	assert.Equal(t, "120003", rows[2].InitiativeID)
}

func TestFlattenRowCountPerInitiative(t *testing.T) {
	for n := 0; n <= 4; n++ {
		events := make([]raw.Value, n)
		for i := range events {
			events[i] = raw.NewObject(map[string]raw.Value{"Fase": raw.NewString("Entrada")})
		}
		fields := map[string]raw.Value{"IniId": raw.NewString("1")}
		if n > 0 {
			fields["IniEventos"] = raw.NewArray(events...)
		}

		rows := Flatten([]raw.Value{raw.NewObject(fields)})
		assert.Len(t, rows, n)
	}
}

func TestFlattenInitiativeFields(t *testing.T) {
	rows := Flatten(loadFixture(t))
	r := rows[1]

	assert.Equal(t, "12", r.Number)
	assert.Equal(t, "Projeto de Lei", r.Type)
	assert.Equal(t, "BE", r.GroupAuthors)
	assert.Equal(t, "Grupos Parlamentares", r.OtherAuthorName)
	assert.Equal(t, "Ana Silva|Rui Costa", r.DeputyAuthors)
	assert.Equal(t, "BE|BE", r.DeputyParties)
	assert.Equal(t, "Parecer|Nota", r.AttachmentNames)
	assert.Equal(t, "BE", r.Author)
	assert.Equal(t, "Ana Silva|Rui Costa", r.AuthorDeputy)
}

func TestFlattenEventFields(t *testing.T) {
	rows := Flatten(loadFixture(t))
	r := rows[1]

	assert.Equal(t, "Votação na generalidade", r.Phase)
	assert.Equal(t, "2024-05-10", r.PhaseDate)
	assert.Equal(t, "2", r.EventID)
	assert.Equal(t, "Com a presença de 200 deputados", r.PhaseObservation)
	assert.Equal(t, []string{"DAR I série"}, r.PublicationTypes)
	assert.Equal(t, "4|5", r.PublicationPages)
	assert.Equal(t, "Ana Silva|", r.SpeakerDeputyNames)
	assert.Equal(t, "|Maria", r.SpeakerGovNames)
	assert.Equal(t, "https://v/1|", r.SpeakerVideos)

	// first ballot wins
	assert.Equal(t, "Rejeitado", r.BallotResult)
	assert.Equal(t, "A Favor: BE<BR>Contra: PS", r.BallotDetail)
	assert.Equal(t, "", r.BallotUnanimous)

	assert.Equal(t, "Comissão de Habitação", r.CommitteeName)
	assert.Equal(t, "Aprovado", r.CommitteeBallotResult)
	assert.Equal(t, "unanime", r.CommitteeBallotUnanimous)

	date, ok := r.Date()
	require.True(t, ok)
	assert.Equal(t, 2024, date.Year())
}

func TestFlattenMissingFieldsAreEmpty(t *testing.T) {
	rows := Flatten(loadFixture(t))
	r := rows[2]

	assert.Equal(t, "", r.Number)
	assert.Equal(t, "", r.GroupAuthors)
	assert.Equal(t, "", r.DeputyAuthors)
	assert.Equal(t, "", r.BallotResult)
	assert.Equal(t, "", r.CommitteeName)
	assert.Empty(t, r.BallotAbsences)
	assert.Equal(t, "Governo", r.Author)
	assert.Equal(t, "Governo", r.AuthorDeputy)
}

const legacyFixture = `{"ArrayOfPt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut": {
  "pt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut": {
    "iniId": "41", "iniNr": "8", "iniDescTipo": "Projeto de Lei", "iniTitulo": "Lei antiga",
    "iniAutorGruposParlamentares": {"pt_gov_ar_objectos_AutoresGruposParlamentaresOut": {"GP": "PCP"}},
    "iniAutorOutros": {"nome": "Grupos Parlamentares"},
    "iniEventos": {"pt_gov_ar_objectos_iniciativas_EventosOut": {
      "fase": "Votação na generalidade", "dataFase": "2015-03-02", "evtId": "900",
      "publicacaoFase": {"pt_gov_ar_objectos_PublicacoesOut": {"pubTipo": "DAR I série", "pag": {"string": ["4", "5"]}}},
      "votacao": {"pt_gov_ar_objectos_VotacaoOut": {
        "resultado": "Aprovado", "detalhe": "A Favor: PCP<BR>Contra: PSD",
        "ausencias": {"string": "CDS-PP"}
      }},
      "comissao": {"pt_gov_ar_objectos_iniciativas_ComissoesIniOut": {"nome": "Comissão de Trabalho"}}
    }}
  }
}}`

func TestFlattenLegacyDump(t *testing.T) {
	items, err := raw.DecodeFeed([]byte(legacyFixture))
	require.NoError(t, err)
	require.Len(t, items, 1)

	rows := Flatten(items)
	require.Len(t, rows, 1)
	r := rows[0]

	assert.Equal(t, "41", r.InitiativeID)
	assert.Equal(t, "Lei antiga", r.Title)
	assert.Equal(t, "PCP", r.GroupAuthors)
	assert.Equal(t, "PCP", r.Author)
	assert.Equal(t, "Votação na generalidade", r.Phase)
	assert.Equal(t, "2015-03-02", r.PhaseDate)
	assert.Equal(t, "900", r.EventID)
	assert.Equal(t, "4|5", r.PublicationPages)
	assert.Equal(t, "Aprovado", r.BallotResult)
	assert.Equal(t, "A Favor: PCP<BR>Contra: PSD", r.BallotDetail)
	assert.Equal(t, []string{"CDS-PP"}, r.BallotAbsences)
	assert.Equal(t, "Comissão de Trabalho", r.CommitteeName)
}
