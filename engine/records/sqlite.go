package records

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// sqliteTimeLayout is the stored timestamp form. Inserts normalize to UTC
// so date() comparisons and scans are location-independent.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLite implements Store over a local inspections database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path, enables WAL, and
// ensures the schema. Parent directories are created if missing.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS inspections (
		record_id TEXT PRIMARY KEY,
		vin TEXT NOT NULL,
		inspected_at TIMESTAMP NOT NULL,
		inspection_type TEXT,
		inspector TEXT,
		ramp TEXT,
		railcar TEXT,
		bay TEXT,
		model TEXT,
		damage_count INTEGER NOT NULL DEFAULT 0,
		damage_codes TEXT,
		damage_desc TEXT,
		damage_comments TEXT,
		vehicle_comments TEXT,
		source_file TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_inspections_date ON inspections(inspected_at);
	CREATE INDEX IF NOT EXISTS idx_inspections_vin ON inspections(vin);
	CREATE INDEX IF NOT EXISTS idx_inspections_ramp ON inspections(ramp);
	`
	_, err := db.Exec(schema)
	return err
}

// Find executes the filter with the fixed ordering and limit.
func (s *SQLite) Find(ctx context.Context, f domain.Filter, limit int) ([]domain.InspectionRecord, error) {
	query, args, err := BuildSelect(f, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountMatches returns the number of rows the filter matches before the
// row limit, for answer enrichment.
func (s *SQLite) CountMatches(ctx context.Context, f domain.Filter) (int, error) {
	query, args, err := BuildCount(f)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// Get returns one record by ID, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (domain.InspectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM inspections WHERE record_id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return domain.InspectionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.InspectionRecord{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// GetByIDs resolves the given IDs to live records. IDs with no row are
// simply absent from the result, which is how stale index entries are
// detected.
func (s *SQLite) GetByIDs(ctx context.Context, ids []string) (map[string]domain.InspectionRecord, error) {
	out := make(map[string]domain.InspectionRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	holders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM inspections WHERE record_id IN ("+holders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("get by ids: %w", err)
	}
	defer rows.Close()

	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.ID] = r
	}
	return out, nil
}

// ScanPage returns up to limit records with ID greater than afterID, in ID
// order. An empty afterID starts from the beginning.
func (s *SQLite) ScanPage(ctx context.Context, afterID string, limit int) ([]domain.InspectionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := "SELECT " + selectColumns + " FROM inspections"
	args := []any{}
	if afterID != "" {
		query += " WHERE record_id > ?"
		args = append(args, afterID)
	}
	query += " ORDER BY record_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Insert writes or replaces one record. Retrieval never calls this; it
// exists for the ingest tooling and tests.
func (s *SQLite) Insert(ctx context.Context, rec domain.InspectionRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO inspections (
		record_id, vin, inspected_at, inspection_type, inspector, ramp,
		railcar, bay, model, damage_count, damage_codes, damage_desc,
		damage_comments, vehicle_comments, source_file
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VIN, rec.InspectedAt.UTC().Format(sqliteTimeLayout),
		rec.InspectionType, rec.Inspector, rec.Ramp, rec.Railcar, rec.Bay,
		rec.Model, rec.DamageCount, rec.DamageCodes, rec.DamageDesc,
		rec.DamageComments, rec.VehicleComments, rec.SourceFile,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.ID, err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.InspectionRecord, error) {
	var r domain.InspectionRecord
	err := row.Scan(
		&r.ID, &r.VIN, &r.InspectedAt,
		&r.InspectionType, &r.Inspector, &r.Ramp,
		&r.Railcar, &r.Bay, &r.Model,
		&r.DamageCount, &r.DamageCodes, &r.DamageDesc,
		&r.DamageComments, &r.VehicleComments,
		&r.SourceFile,
	)
	return r, err
}

func collectRecords(rows *sql.Rows) ([]domain.InspectionRecord, error) {
	var out []domain.InspectionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
