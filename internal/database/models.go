package database

// Build statuses.
const (
	BuildRunning   = "running"
	BuildPublished = "published"
	BuildFailed    = "failed"
)

// Table kinds stored in published_tables.
const (
	KindVotes        = "votes"
	KindApprovals    = "approvals"
	KindCorrelations = "correlations"
	KindDissent      = "dissent"
	KindComposition  = "composition"
)

// Build records one pipeline run for a legislature.
type Build struct {
	ID          string
	Legislature string
	Status      string
	RowCount    int
	Error       *string
	StartedAt   *string
	FinishedAt  *string
}

// Table is one serialized derived table, keyed by phase and kind.
type Table struct {
	Phase   string
	Kind    string
	Payload []byte
}

// PublishedTable is a Table as stored for a legislature.
type PublishedTable struct {
	Legislature string
	BuildID     string
	Table
	PublishedAt *string
}

// Publication is the full output of a successful build.
type Publication struct {
	Legislature string
	BuildID     string
	RowCount    int
	Tables      []Table
	Report      string
}

// Report is the markdown summary of the last published build.
type Report struct {
	Legislature  string
	BuildID      string
	BodyMarkdown string
	GeneratedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Legislatures    int
	PublishedTables int
	Builds          int
	FailedBuilds    int
}
