package database

import "database/sql"

const buildColumns = "id, legislature, status, row_count, error, started_at, finished_at"

// StartBuild records a new running build.
func (db *DB) StartBuild(id, legislature string) error {
	_, err := db.conn.Exec(
		"INSERT INTO builds (id, legislature, status) VALUES (?, ?, ?)",
		id, legislature, BuildRunning,
	)
	return err
}

// FailBuild marks a build as failed. Published tables are left untouched.
func (db *DB) FailBuild(id, reason string) error {
	_, err := db.conn.Exec(
		`UPDATE builds SET status = ?, error = ?, finished_at = datetime('now')
		WHERE id = ?`,
		BuildFailed, reason, id,
	)
	return err
}

// GetBuild returns a build by id, or nil if it does not exist.
func (db *DB) GetBuild(id string) (*Build, error) {
	row := db.conn.QueryRow("SELECT "+buildColumns+" FROM builds WHERE id = ?", id)
	return scanBuild(row)
}

// LatestBuild returns the most recent build of a legislature, or nil.
func (db *DB) LatestBuild(legislature string) (*Build, error) {
	row := db.conn.QueryRow(
		"SELECT "+buildColumns+" FROM builds WHERE legislature = ? ORDER BY started_at DESC, rowid DESC LIMIT 1",
		legislature,
	)
	return scanBuild(row)
}

// GetBuilds returns the most recent builds, newest first.
func (db *DB) GetBuilds(limit int) ([]Build, error) {
	rows, err := db.conn.Query(
		"SELECT "+buildColumns+" FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Legislature, &b.Status, &b.RowCount,
			&b.Error, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

func scanBuild(row *sql.Row) (*Build, error) {
	var b Build
	if err := row.Scan(&b.ID, &b.Legislature, &b.Status, &b.RowCount,
		&b.Error, &b.StartedAt, &b.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(DISTINCT legislature) FROM published_tables", &s.Legislatures},
		{"SELECT COUNT(*) FROM published_tables", &s.PublishedTables},
		{"SELECT COUNT(*) FROM builds", &s.Builds},
		{"SELECT COUNT(*) FROM builds WHERE status = 'failed'", &s.FailedBuilds},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
