package database

import (
	"database/sql"
	"fmt"
)

// Publish replaces every published table and the report of a legislature
// with the output of a build, and marks the build published. It runs in a
// single transaction: readers see either the previous build or this one.
func (db *DB) Publish(p Publication) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}

	if err := publish(tx, p); err != nil {
		tx.Rollback()
		return fmt.Errorf("publishing %s: %w", p.Legislature, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish %s: %w", p.Legislature, err)
	}
	return nil
}

func publish(tx *sql.Tx, p Publication) error {
	result, err := tx.Exec(
		`UPDATE builds SET status = ?, row_count = ?, finished_at = datetime('now')
		WHERE id = ? AND legislature = ?`,
		BuildPublished, p.RowCount, p.BuildID, p.Legislature,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("unknown build %s", p.BuildID)
	}

	if _, err := tx.Exec("DELETE FROM published_tables WHERE legislature = ?", p.Legislature); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO published_tables (legislature, phase, kind, build_id, payload)
		VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range p.Tables {
		if _, err := stmt.Exec(p.Legislature, t.Phase, t.Kind, p.BuildID, string(t.Payload)); err != nil {
			return fmt.Errorf("table %s/%s: %w", t.Phase, t.Kind, err)
		}
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO build_reports (legislature, build_id, body_markdown)
		VALUES (?, ?, ?)`,
		p.Legislature, p.BuildID, p.Report,
	)
	return err
}

// GetPublishedTables returns every published table of a legislature.
func (db *DB) GetPublishedTables(legislature string) ([]PublishedTable, error) {
	rows, err := db.conn.Query(
		`SELECT legislature, build_id, phase, kind, payload, published_at
		FROM published_tables WHERE legislature = ? ORDER BY phase, kind`,
		legislature,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []PublishedTable
	for rows.Next() {
		var t PublishedTable
		var payload string
		if err := rows.Scan(&t.Legislature, &t.BuildID, &t.Phase, &t.Kind, &payload, &t.PublishedAt); err != nil {
			return nil, err
		}
		t.Payload = []byte(payload)
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// GetPublishedTable returns one published table, or nil.
func (db *DB) GetPublishedTable(legislature, phase, kind string) (*PublishedTable, error) {
	row := db.conn.QueryRow(
		`SELECT legislature, build_id, phase, kind, payload, published_at
		FROM published_tables WHERE legislature = ? AND phase = ? AND kind = ?`,
		legislature, phase, kind,
	)

	var t PublishedTable
	var payload string
	if err := row.Scan(&t.Legislature, &t.BuildID, &t.Phase, &t.Kind, &payload, &t.PublishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	t.Payload = []byte(payload)
	return &t, nil
}

// PublishedLegislatures lists legislatures with published tables.
func (db *DB) PublishedLegislatures() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT legislature FROM published_tables ORDER BY legislature")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetReport returns the report of the last published build, or nil.
func (db *DB) GetReport(legislature string) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT legislature, build_id, body_markdown, generated_at
		FROM build_reports WHERE legislature = ?`, legislature,
	)

	var r Report
	if err := row.Scan(&r.Legislature, &r.BuildID, &r.BodyMarkdown, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetAllReports returns every legislature's report ordered by legislature.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		"SELECT legislature, build_id, body_markdown, generated_at FROM build_reports ORDER BY legislature",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.Legislature, &r.BuildID, &r.BodyMarkdown, &r.GeneratedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
