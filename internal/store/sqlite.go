package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buemura/scanward/pkg/types"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

const scanColumns = `id, target_url, scan_type, status, progress,
	total_vulnerabilities, critical_count, high_count, medium_count, low_count,
	scan_duration_seconds, error_message, created_at, updated_at, completed_at,
	reputation_verdict, reputation_stats, reputation_malicious_count,
	reputation_last_analysis_date, reputation_permalink`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) CreateScan(ctx context.Context, draft types.ScanDraft) (*types.ScanRecord, error) {
	now := time.Now().UTC()
	rec := &types.ScanRecord{
		ID:        newUUID(),
		TargetURL: draft.TargetURL,
		ScanType:  draft.ScanType,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, target_url, scan_type, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		rec.ID, rec.TargetURL, rec.ScanType, string(rec.Status), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	return rec, nil
}

func (s *SQLite) UpdateScan(ctx context.Context, id string, patch types.ScanPatch) (*types.ScanRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	if rec.Status.Terminal() {
		return nil, terminal(rec)
	}

	rec.Apply(patch)
	rec.UpdatedAt = time.Now().UTC()

	stats, err := encodeStats(rec.ReputationStats)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE scans SET
		status = ?, progress = ?,
		total_vulnerabilities = ?, critical_count = ?, high_count = ?, medium_count = ?, low_count = ?,
		scan_duration_seconds = ?, error_message = ?, updated_at = ?, completed_at = ?,
		reputation_verdict = ?, reputation_stats = ?, reputation_malicious_count = ?,
		reputation_last_analysis_date = ?, reputation_permalink = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(rec.Status), rec.Progress,
		rec.TotalVulnerabilities, rec.CriticalCount, rec.HighCount, rec.MediumCount, rec.LowCount,
		nullFloat(rec.ScanDurationSeconds), rec.ErrorMessage, rec.UpdatedAt.UnixNano(), nullTime(rec.CompletedAt),
		nullVerdict(rec.ReputationVerdict), stats, nullInt(rec.ReputationMaliciousCount),
		nullTime(rec.ReputationLastAnalysisDate), nullString(rec.ReputationPermalink),
		id, string(types.StatusCompleted), string(types.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("update scan: %w", err)
	}
	// Another connection may have finished the scan since the read.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %q", ErrScanTerminal, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLite) BulkInsertVulnerabilities(ctx context.Context, scanID string, vulns []types.Vulnerability) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM scans WHERE id = ?`, scanID).Scan(&exists); err != nil {
		return fmt.Errorf("read scan: %w", err)
	}
	if exists == 0 {
		return notFound(scanID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vulnerabilities
		(id, scan_id, vuln_type, severity, confidence, location, method, parameter,
		 description, evidence, solution, cwe_id, cvss_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixNano()
	for _, v := range vulns {
		_, err := stmt.ExecContext(ctx,
			newUUID(), scanID, v.VulnType, string(v.Severity), v.Confidence, v.Location, v.Method, v.Parameter,
			v.Description, v.Evidence, v.Solution, nullInt(v.CWEID), nullFloat(v.CVSSScore), now)
		if err != nil {
			return fmt.Errorf("insert vulnerability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteVulnerabilities(ctx context.Context, scanID string) error {
	if _, err := s.ReadScan(ctx, scanID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vulnerabilities WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("delete vulnerabilities: %w", err)
	}
	return nil
}

func (s *SQLite) ReadScan(ctx context.Context, id string) (*types.ScanRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	return rec, nil
}

// ListScans returns all scans sorted by CreatedAt descending.
func (s *SQLite) ListScans(ctx context.Context) ([]*types.ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scanColumns+` FROM scans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var result []*types.ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *SQLite) ListVulnerabilities(ctx context.Context, scanID string) ([]types.Vulnerability, error) {
	if _, err := s.ReadScan(ctx, scanID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, scan_id, vuln_type, severity, confidence, location,
		method, parameter, description, evidence, solution, cwe_id, cvss_score, created_at
		FROM vulnerabilities WHERE scan_id = ? ORDER BY rowid`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list vulnerabilities: %w", err)
	}
	defer rows.Close()

	vulns := []types.Vulnerability{}
	for rows.Next() {
		var (
			v        types.Vulnerability
			severity string
			cwe      sql.NullInt64
			cvss     sql.NullFloat64
			created  int64
		)
		if err := rows.Scan(&v.ID, &v.ScanID, &v.VulnType, &severity, &v.Confidence, &v.Location,
			&v.Method, &v.Parameter, &v.Description, &v.Evidence, &v.Solution, &cwe, &cvss, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v.Severity = types.Severity(severity)
		if cwe.Valid {
			n := int(cwe.Int64)
			v.CWEID = &n
		}
		if cvss.Valid {
			f := cvss.Float64
			v.CVSSScore = &f
		}
		v.CreatedAt = time.Unix(0, created).UTC()
		vulns = append(vulns, v)
	}
	return vulns, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanRecord(row rowScanner) (*types.ScanRecord, error) {
	var (
		rec                    types.ScanRecord
		status                 string
		duration               sql.NullFloat64
		created, updated       int64
		completed, lastAnalyis sql.NullInt64
		verdict, stats, link   sql.NullString
		malicious              sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.TargetURL, &rec.ScanType, &status, &rec.Progress,
		&rec.TotalVulnerabilities, &rec.CriticalCount, &rec.HighCount, &rec.MediumCount, &rec.LowCount,
		&duration, &rec.ErrorMessage, &created, &updated, &completed,
		&verdict, &stats, &malicious, &lastAnalyis, &link)
	if err != nil {
		return nil, err
	}

	rec.Status = types.Status(status)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	if duration.Valid {
		d := duration.Float64
		rec.ScanDurationSeconds = &d
	}
	rec.CompletedAt = fromNullTime(completed)
	rec.ReputationLastAnalysisDate = fromNullTime(lastAnalyis)
	if verdict.Valid {
		v := types.Verdict(verdict.String)
		rec.ReputationVerdict = &v
	}
	if stats.Valid {
		if err := json.Unmarshal([]byte(stats.String), &rec.ReputationStats); err != nil {
			return nil, fmt.Errorf("decode reputation stats: %w", err)
		}
	}
	if malicious.Valid {
		n := int(malicious.Int64)
		rec.ReputationMaliciousCount = &n
	}
	if link.Valid {
		s := link.String
		rec.ReputationPermalink = &s
	}
	return &rec, nil
}

func encodeStats(stats map[string]any) (sql.NullString, error) {
	if stats == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode reputation stats: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullVerdict(v *types.Verdict) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
