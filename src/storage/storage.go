package storage

import (
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------

// NewDatabase selects the audit store backend from the configured db_type.
// Anything but postgres falls back to SQLite.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	if cfg.Storage.DBType == "postgres" {
		return NewPostgresDB(cfg, log)
	}
	return NewSQLiteDB(cfg, log)
}
