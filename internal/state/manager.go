// Package state persists mirror run history in a local sqlite database.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFileName is the sqlite database file kept under the config directory
const DBFileName = "cvdmirror.db"

// Run operations recorded in history
const (
	OpUpdate   = "update"
	OpUpload   = "upload"
	OpDownload = "download"
)

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// Manager handles run history persistence
type Manager struct {
	db *sql.DB
}

// RunRecord represents a single mirror run
type RunRecord struct {
	ID               int64
	Operation        string // "update", "upload", "download"
	StartTime        time.Time
	EndTime          time.Time
	Status           string // "success", "failed", "partial"
	FilesTransferred int
	BytesTransferred int64
	Error            string
}

// NewManager opens (or creates) the history database under dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		files_transferred INTEGER DEFAULT 0,
		bytes_transferred INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_op_time ON runs(operation, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveRun records a mirror run
func (m *Manager) SaveRun(record RunRecord) error {
	switch record.Status {
	case StatusSuccess, StatusFailed, StatusPartial:
	default:
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", record.Status)
	}

	query := `
		INSERT INTO runs (operation, start_time, end_time, status, files_transferred, bytes_transferred, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.Operation,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.FilesTransferred,
		record.BytesTransferred,
		record.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	return nil
}

// GetHistory retrieves run history for one operation
func (m *Manager) GetHistory(operation string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, operation, start_time, end_time, status, files_transferred, bytes_transferred, error
		FROM runs
		WHERE operation = ?
		ORDER BY start_time DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetAllHistory retrieves run history across all operations
func (m *Manager) GetAllHistory(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, operation, start_time, end_time, status, files_transferred, bytes_transferred, error
		FROM runs
		ORDER BY start_time DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetLastSuccess retrieves the most recent successful run for an operation
func (m *Manager) GetLastSuccess(operation string) (*RunRecord, error) {
	query := `
		SELECT id, operation, start_time, end_time, status, files_transferred, bytes_transferred, error
		FROM runs
		WHERE operation = ? AND status = 'success'
		ORDER BY start_time DESC
		LIMIT 1
	`

	var record RunRecord
	err := m.db.QueryRow(query, operation).Scan(
		&record.ID,
		&record.Operation,
		&record.StartTime,
		&record.EndTime,
		&record.Status,
		&record.FilesTransferred,
		&record.BytesTransferred,
		&record.Error,
	)

	if err == sql.ErrNoRows {
		return nil, nil // No successful run yet
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}

	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		err := rows.Scan(
			&record.ID,
			&record.Operation,
			&record.StartTime,
			&record.EndTime,
			&record.Status,
			&record.FilesTransferred,
			&record.BytesTransferred,
			&record.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
