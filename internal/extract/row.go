// Package extract flattens raw initiative records into one tabular row per
// lifecycle stage and resolves each row's canonical author.
package extract

import "time"

// Row is one (initiative, stage) pair. List-valued source fields are
// joined with raw.Sep in source order.
type Row struct {
	// initiative
	InitiativeID   string `json:"iniciativa_id"`
	Number         string `json:"iniciativa_nr"`
	Type           string `json:"iniciativa_tipo"`
	Title          string `json:"iniciativa_titulo"`
	URL            string `json:"iniciativa_url"`
	Observation    string `json:"iniciativa_obs"`
	SubstituteText string `json:"iniciativa_texto_subst"`

	// authorship as published
	GroupAuthors         string `json:"iniciativa_autor_grupos_parlamentares"`
	OtherAuthorName      string `json:"iniciativa_autor_outros_nome"`
	OtherAuthorCommittee string `json:"iniciativa_autor_outros_autor_comissao"`
	DeputyAuthors        string `json:"iniciativa_autor_deputados_nomes"`
	DeputyParties        string `json:"iniciativa_autor_deputados_GPs"`

	AttachmentNames string `json:"iniciativa_anexos_nomes"`
	AttachmentURLs  string `json:"iniciativa_anexos_URLs"`

	OriginIDs      string `json:"iniciativa_origem_id"`
	OriginNumbers  string `json:"iniciativa_origem_nr"`
	OriginSubjects string `json:"iniciativa_origem_assunto"`
	OriginTypes    string `json:"iniciativa_origem_desc"`

	// stage
	Phase            string `json:"iniciativa_evento_fase"`
	PhaseDate        string `json:"iniciativa_evento_data"`
	EventID          string `json:"iniciativa_evento_id"`
	PhaseObservation string `json:"iniciativa_evento_obsFase"`

	PublicationTypes []string `json:"iniciativa_publicacao_Tipo"`
	PublicationURLs  []string `json:"iniciativa_publicacao_URL"`
	PublicationObs   []string `json:"iniciativa_publicacao_Obs"`
	PublicationPages string   `json:"iniciativa_publicacao_Pags"`

	JointTypes  string `json:"iniciativa_iniciativas_conjuntas_tipo"`
	JointTitles string `json:"iniciativa_iniciativas_conjuntas_titulo"`

	SpeakerDeputyNames   string `json:"iniciativa_oradores_deputados_nomes"`
	SpeakerDeputyParties string `json:"iniciativa_oradores_deputados_gp"`
	SpeakerGovNames      string `json:"iniciativa_oradores_governo_nomes"`
	SpeakerGovRoles      string `json:"iniciativa_oradores_governo_cargo"`
	SpeakerVideos        string `json:"iniciativa_oradores_videos"`

	BallotResult      string   `json:"iniciativa_votacao_res"`
	BallotDescription string   `json:"iniciativa_votacao_desc"`
	BallotMeetingType string   `json:"iniciativa_votacao_tipo_reuniao"`
	BallotUnanimous   string   `json:"iniciativa_votacao_unanime"`
	BallotDetail      string   `json:"iniciativa_votacao_detalhe"`
	BallotAbsences    []string `json:"iniciativa_votacao_ausencias"`

	PhaseAttachmentNames string `json:"iniciativa_anexo_nome"`
	PhaseAttachmentURLs  string `json:"iniciativa_anexo_url"`

	CommitteeName            string `json:"iniciativa_comissao_nome"`
	CommitteeCompetent       string `json:"iniciativa_comissao_competente"`
	CommitteeObservation     string `json:"iniciativa_comissao_observacao"`
	CommitteeReportDate      string `json:"iniciativa_comissao_data_relatorio"`
	CommitteeBallotResult    string `json:"iniciativa_comissao_votacao_res"`
	CommitteeBallotUnanimous string `json:"iniciativa_comissao_votacao_unanime"`

	// resolved by ResolveAuthors
	Author       string `json:"iniciativa_autor"`
	AuthorDeputy string `json:"iniciativa_autor_deputado"`
}

// DateLayout is the layout of phase dates in the feed.
const DateLayout = "2006-01-02"

// ParseDate reads a feed date, tolerating a trailing time component.
func ParseDate(s string) (time.Time, bool) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Date parses PhaseDate.
func (r *Row) Date() (time.Time, bool) {
	return ParseDate(r.PhaseDate)
}
