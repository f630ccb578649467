package interfaces

import "market-relay/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the relay's audit trail storage.
// Writes are best-effort: callers log failures and carry on.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveProxyRequest records one REST proxy call.
	SaveProxyRequest(rec models.MProxyRequestRecord) error

	// -----------------------------------------------------------------------------

	// SaveSessionEvent records one streaming session lifecycle event.
	SaveSessionEvent(ev models.MSessionEvent) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes audit rows older than the retention window.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
