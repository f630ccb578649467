package models

import "time"

// -----------------------------------------------------------------------------
// Audit trail records
// -----------------------------------------------------------------------------

// MProxyRequestRecord captures one REST proxy call for the audit store.
type MProxyRequestRecord struct {
	Timestamp    int64  `json:"timestamp"`
	Endpoint     string `json:"endpoint"`
	Symbol       string `json:"symbol"`
	VendorStatus int    `json:"vendor_status"`
	LatencyMs    int64  `json:"latency_ms"`
}

// MSessionEvent captures one lifecycle event of a streaming session.
type MSessionEvent struct {
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"session_id"`
	Event     string `json:"event"` // connected, upstream_open, upstream_lost, resubscribed, closed
	Detail    string `json:"detail"`
}

// -----------------------------------------------------------------------------

// NewSessionEvent stamps a session event with the current time.
func NewSessionEvent(sessionID, event, detail string) MSessionEvent {
	return MSessionEvent{
		Timestamp: time.Now().Unix(),
		SessionID: sessionID,
		Event:     event,
		Detail:    detail,
	}
}
