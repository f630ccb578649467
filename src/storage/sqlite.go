package storage

import (
	"database/sql"
	"fmt"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"

	_ "modernc.org/sqlite"
)

// Audit rows older than this are purged by CleanupOldData.
const auditRetention = 7 * 24 * time.Hour

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS proxy_requests (
			ts INTEGER,
			endpoint TEXT,
			symbol TEXT,
			vendor_status INTEGER,
			latency_ms INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create proxy_requests: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS session_events (
			ts INTEGER,
			session_id TEXT,
			event TEXT,
			detail TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create session_events: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveProxyRequest(rec models.MProxyRequestRecord) error {
	_, err := d.DB.Exec(
		"INSERT INTO proxy_requests (ts, endpoint, symbol, vendor_status, latency_ms) VALUES (?, ?, ?, ?, ?)",
		rec.Timestamp, rec.Endpoint, rec.Symbol, rec.VendorStatus, rec.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert proxy request: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveSessionEvent(ev models.MSessionEvent) error {
	_, err := d.DB.Exec(
		"INSERT INTO session_events (ts, session_id, event, detail) VALUES (?, ?, ?, ?)",
		ev.Timestamp, ev.SessionID, ev.Event, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData() error {
	cutoff := time.Now().Add(-auditRetention).Unix()

	if _, err := d.DB.Exec("DELETE FROM proxy_requests WHERE ts < ?", cutoff); err != nil {
		return fmt.Errorf("failed to cleanup proxy_requests: %w", err)
	}
	if _, err := d.DB.Exec("DELETE FROM session_events WHERE ts < ?", cutoff); err != nil {
		return fmt.Errorf("failed to cleanup session_events: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
