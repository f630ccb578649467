package storage

import (
	"database/sql"
	"fmt"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Schema: "market_relay",
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."proxy_requests" (
			ts BIGINT,
			endpoint TEXT,
			symbol TEXT,
			vendor_status INTEGER,
			latency_ms BIGINT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create proxy_requests: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."session_events" (
			ts BIGINT,
			session_id TEXT,
			event TEXT,
			detail TEXT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create session_events: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveProxyRequest(rec models.MProxyRequestRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."proxy_requests" (ts, endpoint, symbol, vendor_status, latency_ms) VALUES ($1, $2, $3, $4, $5)`,
		d.Schema,
	)
	if _, err := d.DB.Exec(query, rec.Timestamp, rec.Endpoint, rec.Symbol, rec.VendorStatus, rec.LatencyMs); err != nil {
		return fmt.Errorf("failed to insert proxy request: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSessionEvent(ev models.MSessionEvent) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."session_events" (ts, session_id, event, detail) VALUES ($1, $2, $3, $4)`,
		d.Schema,
	)
	if _, err := d.DB.Exec(query, ev.Timestamp, ev.SessionID, ev.Event, ev.Detail); err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	cutoff := time.Now().Add(-auditRetention).Unix()

	query := fmt.Sprintf(`DELETE FROM "%s"."proxy_requests" WHERE ts < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup proxy_requests: %w", err)
	}

	query = fmt.Sprintf(`DELETE FROM "%s"."session_events" WHERE ts < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup session_events: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
