/*
Package sqlite persists computed estimates.

PURPOSE:
  Keeps an append-only log of every estimate the service produced: the
  request as received, the full result, and one row per payer x procedure
  so adjudication outcomes can be queried without decoding the result JSON.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on either table
  - A re-used estimate id fails with ErrDuplicateEstimate
  - Reset exists for tests and demos only

KEY TABLES:
  estimates:       One row per computed estimate (request + result JSON)
  estimate_lines:  Payer x procedure outcomes (allowed, shares, balance)

AMOUNTS:
  Money is stored as decimal TEXT ("1234.50"), never REAL, so amounts
  round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./estimates.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rec, lines, err := sqlite.RecordFromEstimate("", body, est)
  err = store.SaveEstimate(ctx, rec, lines)

SEE ALSO:
  - api/handlers.go: saves every estimate computed over HTTP
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/money"
)

// timestampLayout has a fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrDuplicateEstimate is returned when an estimate id is saved twice.
	ErrDuplicateEstimate = errors.New("estimate already exists")
)

// Store is the SQLite estimate log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS estimates (
		id TEXT PRIMARY KEY,
		patient_name TEXT NOT NULL,
		service_date TEXT,
		total_patient TEXT NOT NULL,
		payer_count INTEGER NOT NULL,
		procedure_count INTEGER NOT NULL,
		request_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_estimates_created_at
		ON estimates(created_at DESC);

	CREATE TABLE IF NOT EXISTS estimate_lines (
		estimate_id TEXT NOT NULL REFERENCES estimates(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		payer_rank TEXT NOT NULL,
		procedure_id TEXT NOT NULL,
		cpt_code TEXT,
		processing_order INTEGER NOT NULL,
		allowed TEXT NOT NULL,
		patient_share TEXT NOT NULL,
		payer_payment TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		PRIMARY KEY (estimate_id, payer_id, procedure_id)
	);

	CREATE INDEX IF NOT EXISTS idx_estimate_lines_procedure
		ON estimate_lines(estimate_id, procedure_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORDS
// =============================================================================

// EstimateRecord is one stored estimate.
type EstimateRecord struct {
	ID             string
	PatientName    string
	ServiceDate    time.Time
	TotalPatient   money.Money
	PayerCount     int
	ProcedureCount int
	RequestJSON    string
	ResultJSON     string
	CreatedAt      time.Time
}

// LineRecord is one procedure as adjudicated by one payer.
type LineRecord struct {
	EstimateID      string
	PayerID         string
	PayerRank       string
	ProcedureID     string
	CPTCode         string
	ProcessingOrder int
	Allowed         money.Money
	PatientShare    money.Money
	PayerPayment    money.Money
	BalanceAfter    money.Money
}

// RecordFromEstimate flattens a computed estimate for storage. An empty id
// gets a fresh UUID.
func RecordFromEstimate(id string, request []byte, est *adjudication.Estimate) (EstimateRecord, []LineRecord, error) {
	if id == "" {
		id = uuid.NewString()
	}
	result, err := json.Marshal(est)
	if err != nil {
		return EstimateRecord{}, nil, fmt.Errorf("failed to encode estimate: %w", err)
	}

	rec := EstimateRecord{
		ID:             id,
		PatientName:    est.MetaData.Patient.Name,
		ServiceDate:    est.MetaData.Service.Date,
		TotalPatient:   est.TotalPatientResponsibility,
		PayerCount:     len(est.Payers),
		ProcedureCount: len(est.Procedures),
		RequestJSON:    string(request),
		ResultJSON:     string(result),
		CreatedAt:      time.Now().UTC(),
	}

	var lines []LineRecord
	for _, block := range est.Chain {
		for _, p := range block.Procedures {
			lines = append(lines, LineRecord{
				EstimateID:      id,
				PayerID:         block.Payer.ID,
				PayerRank:       string(block.Payer.Rank),
				ProcedureID:     p.ProcedureID,
				CPTCode:         p.CPTCode,
				ProcessingOrder: p.ProcessingOrder,
				Allowed:         p.FinalAllowed,
				PatientShare:    p.PatientCostShare,
				PayerPayment:    p.PayerPayment,
				BalanceAfter:    p.BalanceAfterPayer,
			})
		}
	}
	return rec, lines, nil
}

// =============================================================================
// ESTIMATE STORE
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveEstimate stores an estimate and its lines atomically.
func (s *Store) SaveEstimate(ctx context.Context, rec EstimateRecord, lines []LineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertEstimate(ctx, tx, rec); err != nil {
		return err
	}
	for _, l := range lines {
		if err := insertLine(ctx, tx, l); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertEstimate(ctx context.Context, db execer, rec EstimateRecord) error {
	query := `
		INSERT INTO estimates
		(id, patient_name, service_date, total_patient, payer_count, procedure_count,
		 request_json, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		rec.ID,
		rec.PatientName,
		formatDate(rec.ServiceDate),
		rec.TotalPatient.String(),
		rec.PayerCount,
		rec.ProcedureCount,
		rec.RequestJSON,
		rec.ResultJSON,
		createdAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEstimate, rec.ID)
		}
		return fmt.Errorf("failed to save estimate: %w", err)
	}
	return nil
}

func insertLine(ctx context.Context, db execer, l LineRecord) error {
	query := `
		INSERT INTO estimate_lines
		(estimate_id, payer_id, payer_rank, procedure_id, cpt_code, processing_order,
		 allowed, patient_share, payer_payment, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		l.EstimateID, l.PayerID, l.PayerRank, l.ProcedureID, l.CPTCode, l.ProcessingOrder,
		l.Allowed.String(), l.PatientShare.String(), l.PayerPayment.String(), l.BalanceAfter.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save estimate line %s/%s: %w", l.PayerID, l.ProcedureID, err)
	}
	return nil
}

const estimateColumns = `id, patient_name, service_date, total_patient, payer_count, procedure_count,
	request_json, result_json, created_at`

// GetEstimate retrieves an estimate by ID. Returns nil, nil when absent.
func (s *Store) GetEstimate(ctx context.Context, id string) (*EstimateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryEstimates(ctx, "SELECT "+estimateColumns+" FROM estimates WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// ListEstimates returns the most recent estimates first.
func (s *Store) ListEstimates(ctx context.Context, limit int) ([]EstimateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	return s.queryEstimates(ctx,
		"SELECT "+estimateColumns+" FROM estimates ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
}

func (s *Store) queryEstimates(ctx context.Context, query string, args ...any) ([]EstimateRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var recs []EstimateRecord
	for rows.Next() {
		var r EstimateRecord
		var serviceDate sql.NullString
		var total, createdAt string
		if err := rows.Scan(&r.ID, &r.PatientName, &serviceDate, &total, &r.PayerCount,
			&r.ProcedureCount, &r.RequestJSON, &r.ResultJSON, &createdAt); err != nil {
			return nil, err
		}
		r.TotalPatient = money.Parse(total)
		if serviceDate.Valid {
			r.ServiceDate, _ = time.Parse(time.DateOnly, serviceDate.String)
		}
		r.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// EstimateLines returns an estimate's lines in chain order: payer rank,
// then processing order.
func (s *Store) EstimateLines(ctx context.Context, estimateID string) ([]LineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT estimate_id, payer_id, payer_rank, procedure_id, cpt_code, processing_order,
		       allowed, patient_share, payer_payment, balance_after
		FROM estimate_lines
		WHERE estimate_id = ?
		ORDER BY CASE payer_rank WHEN 'Primary' THEN 1 WHEN 'Secondary' THEN 2 ELSE 3 END,
		         processing_order, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, estimateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate lines: %w", err)
	}
	defer rows.Close()

	var lines []LineRecord
	for rows.Next() {
		var l LineRecord
		var cpt sql.NullString
		var allowed, share, payment, balance string
		if err := rows.Scan(&l.EstimateID, &l.PayerID, &l.PayerRank, &l.ProcedureID, &cpt,
			&l.ProcessingOrder, &allowed, &share, &payment, &balance); err != nil {
			return nil, err
		}
		l.CPTCode = cpt.String
		l.Allowed = money.Parse(allowed)
		l.PatientShare = money.Parse(share)
		l.PayerPayment = money.Parse(payment)
		l.BalanceAfter = money.Parse(balance)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"estimate_lines", "estimates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.DateOnly), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
