package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/aopview/pkg/model"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS elements (
	id TEXT PRIMARY KEY,
	grp TEXT NOT NULL,
	label TEXT,
	source TEXT,
	target TEXT,
	edge_type TEXT,
	curie TEXT,
	expression TEXT,
	classes TEXT,
	visible INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_elements_grp ON elements(grp);
`

// SQLiteReader provides read access to the element cache
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens the cache for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		db.Exec(pragma)
	}

	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadElements reads all cached elements, nodes first so edge endpoints
// resolve on insertion.
func (r *SQLiteReader) LoadElements() ([]model.Element, error) {
	query := `
		SELECT id, grp, label, source, target, edge_type, curie, expression, classes, visible
		FROM elements
		ORDER BY CASE grp WHEN 'nodes' THEN 0 ELSE 1 END, id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var els []model.Element
	for rows.Next() {
		var el model.Element
		var grp string
		var label, source, target, edgeType, curie, expression, classes sql.NullString
		var visible int

		err := rows.Scan(&el.Data.ID, &grp, &label, &source, &target, &edgeType,
			&curie, &expression, &classes, &visible)
		if err != nil {
			continue
		}

		el.Group = model.Group(grp)
		if label.Valid {
			el.Data.Label = label.String
		}
		if source.Valid {
			el.Data.Source = source.String
		}
		if target.Valid {
			el.Data.Target = target.String
		}
		if edgeType.Valid {
			el.Data.Type = edgeType.String
		}
		if curie.Valid {
			el.Data.Curie = curie.String
		}
		if expression.Valid {
			el.Data.Expression = expression.String
		}
		if classes.Valid {
			el.Classes = classes.String
		}
		el.Visible = visible != 0

		els = append(els, el)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	return els, nil
}

// CountElements returns the number of cached elements
func (r *SQLiteReader) CountElements() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM elements").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetLastModified returns the most recent element update time
func (r *SQLiteReader) GetLastModified() (time.Time, error) {
	var updatedAt sql.NullTime
	err := r.db.QueryRow("SELECT MAX(updated_at) FROM elements").Scan(&updatedAt)
	if err != nil {
		return time.Time{}, err
	}
	if !updatedAt.Valid {
		return time.Time{}, nil
	}
	return updatedAt.Time, nil
}

// SQLiteWriter maintains the element cache
type SQLiteWriter struct {
	db   *sql.DB
	path string
}

// NewSQLiteWriter opens (creating if needed) the cache for writing
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("cannot open cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema: %w", err)
	}
	return &SQLiteWriter{db: db, path: path}, nil
}

// Close closes the database connection
func (w *SQLiteWriter) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// SaveElements replaces the cached element set in a single transaction.
func (w *SQLiteWriter) SaveElements(els []model.Element) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM elements"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO elements (id, grp, label, source, target, edge_type, curie, expression, classes, visible, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, el := range els {
		visible := 0
		if el.Visible {
			visible = 1
		}
		_, err := stmt.Exec(el.Data.ID, string(el.Group), el.Data.Label,
			el.Data.Source, el.Data.Target, el.Data.Type, el.Data.Curie,
			el.Data.Expression, el.Classes, visible, now)
		if err != nil {
			return fmt.Errorf("insert element %s: %w", el.Data.ID, err)
		}
	}

	return tx.Commit()
}

// normalizeClasses collapses whitespace so cache round trips compare cleanly.
func normalizeClasses(classes string) string {
	return strings.Join(strings.Fields(classes), " ")
}
