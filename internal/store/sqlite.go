package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeflow/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ OutcomeStore = (*SQLiteStore)(nil)

// SQLiteStore implements OutcomeStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	order_id   TEXT PRIMARY KEY,
	trace_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	workflow   TEXT NOT NULL,
	symbol     TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status, created_at);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveOutcome inserts or replaces the outcome for an order. The full
// outcome is stored as JSON; indexed columns carry what list queries need.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, outcome *domain.OrderOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshalling outcome %s: %w", outcome.OrderID, err)
	}

	symbol := ""
	if outcome.Order != nil {
		symbol = outcome.Order.Symbol
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO outcomes (order_id, trace_id, status, workflow, symbol, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		outcome.OrderID, outcome.TraceID, string(outcome.Status), string(outcome.Workflow),
		symbol, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving outcome %s: %w", outcome.OrderID, err)
	}
	return nil
}

// GetOutcome retrieves a single outcome by order id.
func (s *SQLiteStore) GetOutcome(ctx context.Context, orderID string) (*domain.OrderOutcome, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM outcomes WHERE order_id = ?`, orderID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading outcome %s: %w", orderID, err)
	}

	var outcome domain.OrderOutcome
	if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
		return nil, fmt.Errorf("unmarshalling outcome %s: %w", orderID, err)
	}
	return &outcome, nil
}

// ListOutcomes returns the most recent outcomes, newest first.
func (s *SQLiteStore) ListOutcomes(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.OrderOutcome, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT payload FROM outcomes ORDER BY created_at DESC LIMIT ?`
	args := []any{limit}
	if status != "" {
		query = `SELECT payload FROM outcomes WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{string(status), limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.OrderOutcome
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var outcome domain.OrderOutcome
		if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
			return nil, fmt.Errorf("unmarshalling outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}
