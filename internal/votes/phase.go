package votes

// Phase is a lifecycle-phase filter for published tables.
type Phase struct {
	Key  string // URL and storage key
	Name string // stage name as in the feed; empty matches every stage
}

// Known phases. PhaseAll always comes first.
var (
	PhaseAll          = Phase{Key: "all"}
	PhaseGenerality   = Phase{Key: "generalidade", Name: "Votação na generalidade"}
	PhaseSpeciality   = Phase{Key: "especialidade", Name: "Votação na especialidade"}
	PhaseFinalOverall = Phase{Key: "final_global", Name: "Votação final global"}
	Phases            = []Phase{PhaseAll, PhaseGenerality, PhaseSpeciality, PhaseFinalOverall}
)

// LookupPhase finds a phase by key. An empty key is PhaseAll.
func LookupPhase(key string) (Phase, bool) {
	if key == "" {
		return PhaseAll, true
	}
	for _, p := range Phases {
		if p.Key == key {
			return p, true
		}
	}
	return Phase{}, false
}

// Matches reports whether a stage name belongs to the phase.
func (p Phase) Matches(stage string) bool {
	return p.Name == "" || p.Name == stage
}
