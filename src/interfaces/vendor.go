package interfaces

import (
	"context"

	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// IVendorREST defines the contract for the vendor's REST surface. Responses
// are raw vendor JSON bytes, forwarded to the browser unmodified.
// -----------------------------------------------------------------------------

type IVendorREST interface {

	// -----------------------------------------------------------------------------

	// GetBars fetches historical bars for one symbol.
	GetBars(ctx context.Context, query models.MBarsQuery) ([]byte, error)

	// -----------------------------------------------------------------------------

	// GetSnapshot fetches the latest snapshot for one symbol.
	GetSnapshot(ctx context.Context, symbol, feed string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// GetAccount fetches the paper-trading account.
	GetAccount(ctx context.Context) ([]byte, error)

	// -----------------------------------------------------------------------------

	// GetPositions fetches the paper-trading positions array.
	GetPositions(ctx context.Context) ([]byte, error)

	// -----------------------------------------------------------------------------

	// CreateOrder places a paper-trading order.
	CreateOrder(ctx context.Context, ticket models.MOrderTicket) ([]byte, error)
}

// -----------------------------------------------------------------------------
// IStreamConn is one open connection to the vendor's streaming endpoint,
// already authenticated. It never reconnects itself; the owning session
// decides when to dial again.
// -----------------------------------------------------------------------------

type IStreamConn interface {

	// -----------------------------------------------------------------------------

	// SendSubscribe forwards a subscription change frame.
	SendSubscribe(frame models.MSubscribeAction) error

	// -----------------------------------------------------------------------------

	// IsOpen returns false once the connection errored or closed.
	IsOpen() bool

	// -----------------------------------------------------------------------------

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// -----------------------------------------------------------------------------
// IStreamDialer opens authenticated stream connections. onFrame receives
// every post-auth inbound payload verbatim, in arrival order; onClose fires
// once when the connection is lost.
// -----------------------------------------------------------------------------

type IStreamDialer interface {

	// -----------------------------------------------------------------------------

	Dial(ctx context.Context, onFrame func([]byte), onClose func(error)) (IStreamConn, error)
}
