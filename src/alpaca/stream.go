package alpaca

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// -----------------------------------------------------------------------------
// StreamDialer
// -----------------------------------------------------------------------------

// StreamDialer opens authenticated connections to the vendor's market-data
// stream. The feed path comes from server configuration, never from the
// browser, so a client cannot steer the relay onto a different data tier.
type StreamDialer struct {
	Config *models.MAlpacaConfig
	Net    *models.MNetworkConfig
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewStreamDialer creates a dialer bound to the configured stream endpoint.
func NewStreamDialer(cfg *models.MAlpacaConfig, net *models.MNetworkConfig, log *logger.Logger) *StreamDialer {
	return &StreamDialer{
		Config: cfg,
		Net:    net,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Dial connects, authenticates and starts the read loop. The auth handshake
// is bounded by the configured auth timeout; a hung or rejected handshake
// closes the socket and returns an error.
func (d *StreamDialer) Dial(ctx context.Context, onFrame func([]byte), onClose func(error)) (interfaces.IStreamConn, error) {
	endpoint := strings.TrimRight(d.Config.StreamURL, "/") + "/" + d.Config.Feed

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	sc := &streamConn{
		conn:    conn,
		logger:  d.Logger,
		onFrame: onFrame,
		onClose: onClose,
		done:    make(chan struct{}),
		open:    true,
	}

	authDeadline := time.Now().Add(time.Duration(d.Net.AuthTimeout) * time.Second)
	if err := sc.authenticate(d.Config.KeyID, d.Config.SecretKey, authDeadline); err != nil {
		conn.Close()
		return nil, err
	}

	go sc.readLoop()

	d.Logger.Debug("stream connected and authenticated (%s)", d.Config.Feed)
	return sc, nil
}

// -----------------------------------------------------------------------------
// streamConn
// -----------------------------------------------------------------------------

// streamConn implements interfaces.IStreamConn over one Gorilla WebSocket.
type streamConn struct {
	conn    *websocket.Conn
	logger  *logger.Logger
	onFrame func([]byte)
	onClose func(error)

	writeMu sync.Mutex
	done    chan struct{}

	mu        sync.RWMutex
	open      bool
	notifyOne sync.Once
}

// -----------------------------------------------------------------------------

// authenticate sends the credential frame and waits for the vendor's
// "authenticated" acknowledgement. Every read during the handshake is
// bounded by deadline.
func (s *streamConn) authenticate(key, secret string, deadline time.Time) error {
	auth := models.MAuthAction{Action: "auth", Key: key, Secret: secret}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("failed to send auth frame: %w", err)
	}

	// The vendor sends {"T":"success","msg":"connected"} on open and
	// {"T":"success","msg":"authenticated"} once the credentials clear.
	for {
		s.conn.SetReadDeadline(deadline)
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("auth handshake failed: %w", err)
		}

		frames := models.DecodeStreamFrames(payload)
		if ef := models.AuthError(frames); ef != nil {
			return fmt.Errorf("auth rejected by vendor: %d %s", ef.Code, ef.Msg)
		}
		if models.IsAuthenticated(frames) {
			// Back to blocking reads for the streaming phase.
			s.conn.SetReadDeadline(time.Time{})
			return nil
		}
	}
}

// -----------------------------------------------------------------------------

// readLoop delivers every inbound payload verbatim and in arrival order.
// On error it marks the connection closed and notifies the owner once.
func (s *streamConn) readLoop() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Closed locally; the owner already knows.
			default:
				s.markClosed(err)
			}
			return
		}
		s.onFrame(payload)
	}
}

// -----------------------------------------------------------------------------

// SendSubscribe forwards a subscription change frame.
func (s *streamConn) SendSubscribe(frame models.MSubscribeAction) error {
	s.mu.RLock()
	open := s.open
	s.mu.RUnlock()
	if !open {
		return fmt.Errorf("stream connection is not open")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to send subscribe frame: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// IsOpen returns false once the connection errored or closed.
func (s *streamConn) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// -----------------------------------------------------------------------------

// Close tears the connection down. Safe to call more than once; a local
// close does not fire the owner's onClose callback.
func (s *streamConn) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	close(s.done)
	s.mu.Unlock()

	s.writeMu.Lock()
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()

	return s.conn.Close()
}

// -----------------------------------------------------------------------------

// markClosed flips the state after a remote error and notifies the owner.
func (s *streamConn) markClosed(err error) {
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.mu.Unlock()

	if wasOpen {
		s.conn.Close()
		s.logger.Debug("stream connection lost: %v", err)
	}

	s.notifyOne.Do(func() {
		if s.onClose != nil {
			s.onClose(err)
		}
	})
}
