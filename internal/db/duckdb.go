// Package db mirrors loaded layers into DuckDB so their attributes can be
// queried with SQL. The mirror is rebuilt from the sources on every start.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoportal/internal/feature"
)

// GeometryColumn holds each record's geometry as GeoJSON text.
const GeometryColumn = "geojson"

// Config holds database configuration.
type Config struct {
	// DataDir, when set, stores the database in DataDir/duckdb/<DBName>.duckdb.
	// Empty means in-memory.
	DataDir string
	DBName  string
	// Extensions are installed and loaded on open. Failures are logged.
	Extensions []string
	Logger     *slog.Logger
}

// Mirror is a DuckDB database with one table per loaded layer.
type Mirror struct {
	db  *sql.DB
	log *slog.Logger

	mu sync.Mutex // serializes table rebuilds
}

// Open opens the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Mirror, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "geoportal"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			log.Warn("duckdb extension unavailable", "extension", ext, "error", err)
		}
	}
	return &Mirror{db: db, log: log}, nil
}

// DB returns the underlying connection pool.
func (m *Mirror) DB() *sql.DB { return m.db }

// Close closes the database.
func (m *Mirror) Close() error { return m.db.Close() }

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]`)

// TableName returns the table a layer is mirrored into.
func TableName(layerID string) string {
	return "layer_" + unsafeIdent.ReplaceAllString(strings.ToLower(layerID), "_")
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// columns returns the property keys in first-seen order and the column
// name each maps to. DuckDB identifiers are case-insensitive, so keys that
// collide get a numeric suffix.
func columns(recs []feature.Record) ([]string, map[string]string) {
	taken := map[string]bool{"id": true, GeometryColumn: true}
	var keys []string
	names := make(map[string]string)
	for _, rec := range recs {
		for _, k := range rec.Properties.Keys() {
			if _, ok := names[k]; ok || k == "id" {
				continue
			}
			name := k
			for n := 2; taken[strings.ToLower(name)]; n++ {
				name = fmt.Sprintf("%s_%d", k, n)
			}
			taken[strings.ToLower(name)] = true
			keys = append(keys, k)
			names[k] = name
		}
	}
	return keys, names
}

// ReplaceLayer recreates the layer's table from recs. Every property is
// stored as text; nulls stay NULL.
func (m *Mirror) ReplaceLayer(ctx context.Context, layerID string, recs []feature.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := TableName(layerID)
	keys, names := columns(recs)

	defs := []string{quote("id") + " VARCHAR PRIMARY KEY"}
	for _, k := range keys {
		defs = append(defs, quote(names[k])+" VARCHAR")
	}
	defs = append(defs, quote(GeometryColumn)+" VARCHAR")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", layerID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return fmt.Errorf("mirror %s: %w", layerID, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("mirror %s: %w", layerID, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)+2), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(table), placeholders))
	if err != nil {
		return fmt.Errorf("mirror %s: %w", layerID, err)
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		// first record wins on duplicate ids
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		args := make([]any, 0, len(keys)+2)
		args = append(args, rec.ID)
		for _, k := range keys {
			v := rec.Properties.Value(k)
			if v.IsNull() {
				args = append(args, nil)
			} else {
				args = append(args, v.Text())
			}
		}
		var geom any
		if rec.Geometry != nil {
			b, err := geojson.NewGeometry(rec.Geometry).MarshalJSON()
			if err != nil {
				return fmt.Errorf("mirror %s: feature %s: %w", layerID, rec.ID, err)
			}
			geom = string(b)
		}
		args = append(args, geom)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("mirror %s: feature %s: %w", layerID, rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mirror %s: %w", layerID, err)
	}
	m.log.Debug("layer mirrored", "layer", layerID, "table", table, "rows", len(seen))
	return nil
}

// DropLayer removes the layer's table. Unknown layers are ignored.
func (m *Mirror) DropLayer(ctx context.Context, layerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(TableName(layerID))); err != nil {
		return fmt.Errorf("drop mirror %s: %w", layerID, err)
	}
	return nil
}

// Tables lists every table in the database.
func (m *Mirror) Tables(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// QueryResult is the outcome of an ad-hoc query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Query runs q and collects every row.
func (m *Mirror) Query(ctx context.Context, q string, args ...any) (QueryResult, error) {
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, err
	}
	res := QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
