package extract

import (
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

// Flatten produces one Row per event of each initiative, in source order.
// Initiatives without events contribute nothing: without a stage there is
// no ballot to tabulate. Authors are resolved on the way out.
func Flatten(initiatives []raw.Value) []Row {
	var rows []Row
	for _, ini := range initiatives {
		base := initiativeFields(ini)

		for _, event := range raw.ToList(ini.Get("IniEventos")) {
			row := base
			applyEvent(&row, event)
			resolve(&row)
			rows = append(rows, row)
		}
	}
	return rows
}

func initiativeFields(ini raw.Value) Row {
	r := Row{
		InitiativeID:   ini.Str("IniId", ""),
		Number:         ini.Str("IniNr", ""),
		Type:           ini.Str("IniDescTipo", ""),
		Title:          ini.Str("IniTitulo", ""),
		URL:            ini.Str("IniLinkTexto", ""),
		Observation:    ini.Str("IniObs", ""),
		SubstituteText: ini.Str("IniTextoSubstCampo", ""),
	}

	groups := raw.ToList(ini.Get("IniAutorGruposParlamentares"))
	r.GroupAuthors = strings.Join(raw.Field(groups, "GP"), raw.Sep)

	other := ini.Get("IniAutorOutros")
	r.OtherAuthorName = other.Str("nome", "")
	r.OtherAuthorCommittee = other.Str("iniAutorComissao", "")

	deputies := raw.ToList(ini.Get("IniAutorDeputados"))
	r.DeputyAuthors = raw.JoinField(deputies, "nome")
	r.DeputyParties = raw.JoinField(deputies, "GP")

	attachments := raw.ToList(ini.Get("IniAnexos"))
	r.AttachmentNames = raw.JoinField(attachments, "anexoNome")
	r.AttachmentURLs = raw.JoinField(attachments, "anexoFich")

	origins := raw.ToList(ini.Get("IniciativasOrigem"))
	r.OriginIDs = raw.JoinField(origins, "id")
	r.OriginNumbers = raw.JoinField(origins, "numero")
	r.OriginSubjects = raw.JoinField(origins, "assunto")
	r.OriginTypes = raw.JoinField(origins, "descTipo")

	return r
}

func applyEvent(r *Row, event raw.Value) {
	r.Phase = event.Str("Fase", "")
	r.PhaseDate = event.Str("DataFase", "")
	r.EventID = event.Get("EvtId").Or(event.Get("OevId")).Text("")
	r.PhaseObservation = event.Str("ObsFase", "")

	pubs := raw.ToList(event.Get("PublicacaoFase"))
	r.PublicationTypes = fieldPerItem(pubs, "pubTipo")
	r.PublicationURLs = fieldPerItem(pubs, "URLDiario")
	r.PublicationObs = fieldPerItem(pubs, "obs")
	pages := make([]string, len(pubs))
	for i, p := range pubs {
		pages[i] = strings.Join(raw.Texts(raw.ToList(p.Get("pag"))), raw.Sep)
	}
	r.PublicationPages = strings.Join(pages, raw.Sep)

	joint := raw.ToList(event.Get("IniciativasConjuntas"))
	r.JointTypes = raw.JoinField(joint, "descTipo")
	r.JointTitles = raw.JoinField(joint, "titulo")

	applySpeakers(r, raw.ToList(event.Get("Intervencoesdebates")))

	// Some stages carry several ballots; only the first is kept.
	ballot := first(raw.ToList(event.Get("Votacao")))
	r.BallotResult = ballot.Str("resultado", "")
	r.BallotDescription = ballot.Str("descricao", "")
	r.BallotMeetingType = ballot.Str("tipoReuniao", "")
	r.BallotUnanimous = ballot.Str("unanime", "")
	r.BallotDetail = ballot.Str("detalhe", "")
	r.BallotAbsences = raw.Texts(raw.ToList(ballot.Get("ausencias")))

	phaseAttachments := raw.ToList(event.Get("AnexosFase"))
	r.PhaseAttachmentNames = raw.JoinField(phaseAttachments, "anexoNome")
	r.PhaseAttachmentURLs = raw.JoinField(phaseAttachments, "anexoFich")

	committee := first(raw.ToList(event.Get("Comissao")))
	r.CommitteeName = committee.Str("Nome", "")
	r.CommitteeCompetent = committee.Str("Competente", "")
	r.CommitteeObservation = committee.Str("Observacao", "")
	r.CommitteeReportDate = committee.Str("DataRelatorio", "")
	committeeBallot := first(raw.ToList(committee.Get("Votacao")))
	r.CommitteeBallotResult = committeeBallot.Str("resultado", "")
	r.CommitteeBallotUnanimous = committeeBallot.Str("unanime", "")
}

// applySpeakers flattens debate interventions. Names of deputies and of
// government members are kept in separate columns; video links of both
// end up in the same one.
func applySpeakers(r *Row, interventions []raw.Value) {
	var depNames, depParties, govNames, govRoles, videos []string
	for _, intervention := range interventions {
		speakers := raw.ToList(intervention.Get("oradores"))

		var dn, dp, gn, gr, vids []string
		for _, s := range speakers {
			dep := s.Get("deputados")
			gov := s.Get("membrosGoverno")
			dn = append(dn, dep.Str("nome", ""))
			dp = append(dp, dep.Str("GP", ""))
			gn = append(gn, gov.Str("nome", ""))
			gr = append(gr, gov.Str("cargo", ""))

			links := raw.ToList(s.Get("linkVideo"))
			vids = append(vids, strings.Join(fieldPerItem(links, "link"), raw.Sep))
		}
		depNames = append(depNames, strings.Join(dn, raw.Sep))
		depParties = append(depParties, strings.Join(dp, raw.Sep))
		govNames = append(govNames, strings.Join(gn, raw.Sep))
		govRoles = append(govRoles, strings.Join(gr, raw.Sep))
		videos = append(videos, strings.Join(vids, raw.Sep))
	}
	r.SpeakerDeputyNames = strings.Join(depNames, raw.Sep)
	r.SpeakerDeputyParties = strings.Join(depParties, raw.Sep)
	r.SpeakerGovNames = strings.Join(govNames, raw.Sep)
	r.SpeakerGovRoles = strings.Join(govRoles, raw.Sep)
	r.SpeakerVideos = strings.Join(videos, raw.Sep)
}

// fieldPerItem keeps one entry per element, falsy elements included, so the
// publication columns stay aligned with each other.
func fieldPerItem(list []raw.Value, key string) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.Str(key, "")
	}
	return out
}

func first(list []raw.Value) raw.Value {
	if len(list) == 0 {
		return raw.Value{}
	}
	return list[0]
}
