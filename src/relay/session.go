package relay

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Supervisor backoff bounds for upstream redials.
	backoffBase = 500 * time.Millisecond
	backoffCap  = 30 * time.Second

	sendBufferSize = 256
)

// -----------------------------------------------------------------------------
// Session States
// -----------------------------------------------------------------------------

type State int

const (
	StateNoUpstream State = iota
	StateConnecting
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNoUpstream:
		return "NO_UPSTREAM"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session owns one browser WebSocket connection and, at most, one upstream
// stream connection at any instant. Upstream frames pass through to the
// browser verbatim and in arrival order; browser subscribe requests are
// translated into vendor subscription frames.
type Session struct {
	ID     string
	Logger *logger.Logger

	dialer  interfaces.IStreamDialer
	db      interfaces.IDatabase
	browser *websocket.Conn

	// Frames bound for the browser, in upstream arrival order.
	send chan []byte

	// Nudges the supervisor out of its idle wait.
	wake chan struct{}

	mu       sync.Mutex
	state    State
	upstream interfaces.IStreamConn
	subs     models.MSubscriptionSet
	hasSubs  bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

// NewSession wraps an accepted browser connection. db may be nil when the
// audit store is disabled.
func NewSession(browser *websocket.Conn, dialer interfaces.IStreamDialer, db interfaces.IDatabase, logLevel string) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:      id,
		Logger:  logger.NewLogger(logLevel, "Session-"+id[:8]),
		dialer:  dialer,
		db:      db,
		browser: browser,
		send:    make(chan []byte, sendBufferSize),
		wake:    make(chan struct{}, 1),
		state:   StateNoUpstream,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// -----------------------------------------------------------------------------

// Run drives the session until the browser disconnects. It starts the write
// pump and the upstream supervisor, then blocks on the browser read pump.
func (s *Session) Run() {
	s.Logger.Info("session started")
	s.audit("connected", "")

	go s.writePump()
	go s.supervise()

	s.readPump()
	s.Close()
}

// -----------------------------------------------------------------------------

// State returns the current state (for tests and the health endpoint).
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// -----------------------------------------------------------------------------

// Close tears the session down: cancels the supervisor, closes the upstream
// connection best-effort and closes the browser socket. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		up := s.upstream
		s.upstream = nil
		s.mu.Unlock()

		s.cancel()
		if up != nil {
			up.Close()
		}
		s.browser.Close()

		s.Logger.Info("session closed")
		s.audit("closed", "")
	})
}

// -----------------------------------------------------------------------------
// Browser side
// -----------------------------------------------------------------------------

// readPump consumes browser control frames until the socket dies. Frames
// that fail to parse, or whose type is not "subscribe", are ignored.
func (s *Session) readPump() {
	defer s.Logger.Info("browser disconnected")

	s.browser.SetReadLimit(maxMessageSize)
	s.browser.SetReadDeadline(time.Now().Add(pongWait))
	s.browser.SetPongHandler(func(string) error {
		s.browser.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.browser.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.Logger.Info("browser read error: %v", err)
			}
			return
		}

		var req models.MSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.Logger.Debug("ignoring unparseable browser frame: %v", err)
			continue
		}
		if req.Type != "subscribe" {
			s.Logger.Debug("ignoring browser frame of type %q", req.Type)
			continue
		}

		s.handleSubscribe(models.NewSubscriptionSet(&req))
	}
}

// -----------------------------------------------------------------------------

// writePump relays upstream frames to the browser verbatim. Write failures
// end the pump; the browser may have disconnected concurrently and the read
// pump will notice.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.browser.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case payload := <-s.send:
			s.browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.browser.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Logger.Debug("browser write error: %v", err)
				return
			}

		case <-ticker.C:
			s.browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.browser.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// handleSubscribe records the latest full set and forwards it when the
// upstream is ready. While the upstream is down the individual request is
// not forwarded and not queued; the supervisor replays the recorded set
// once the connection is back.
func (s *Session) handleSubscribe(set models.MSubscriptionSet) {
	s.mu.Lock()
	s.subs = set
	s.hasSubs = true
	up := s.upstream
	streaming := s.state == StateStreaming
	s.mu.Unlock()

	if !streaming || up == nil || !up.IsOpen() {
		s.Logger.Info("subscribe received while upstream is %s; will replay on reconnect", s.State())
		s.nudge()
		return
	}

	if err := up.SendSubscribe(set.SubscribeFrame()); err != nil {
		// Logged, not surfaced: the read loop will report the dead
		// connection and the supervisor takes it from there.
		s.Logger.Warning("failed to forward subscribe: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Upstream side
// -----------------------------------------------------------------------------

// onUpstreamFrame queues one vendor payload for the browser. The buffered
// channel preserves arrival order; delivery blocks rather than reorders,
// and session teardown unblocks it.
func (s *Session) onUpstreamFrame(payload []byte) {
	select {
	case s.send <- payload:
	case <-s.ctx.Done():
	}
}

// -----------------------------------------------------------------------------

// onUpstreamClose fires once when the vendor connection is lost. The
// session drops back to NO_UPSTREAM and the supervisor redials.
func (s *Session) onUpstreamClose(err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.upstream = nil
	s.state = StateNoUpstream
	s.mu.Unlock()

	s.Logger.Warning("upstream connection lost: %v", err)
	s.audit("upstream_lost", errString(err))
	s.nudge()
}

// -----------------------------------------------------------------------------

// supervise keeps the upstream link alive: it dials on start, redials with
// capped exponential backoff after a loss, and replays the last recorded
// subscription set on every successful connect.
func (s *Session) supervise() {
	attempt := 0

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		// A recorded handle whose connection already died (and whose close
		// notification was consumed early) still needs a redial.
		if s.upstream != nil && !s.upstream.IsOpen() && s.state != StateClosed {
			s.upstream = nil
			s.state = StateNoUpstream
		}
		needDial := s.state == StateNoUpstream && s.upstream == nil
		if needDial {
			s.state = StateConnecting
		}
		s.mu.Unlock()

		if needDial {
			if s.connectUpstream() {
				attempt = 0
			} else {
				attempt++
			}
		}

		if attempt > 0 {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(backoffDelay(attempt)):
			}
			continue
		}

		// Connected (or already connected): wait for a loss or teardown.
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
	}
}

// -----------------------------------------------------------------------------

// connectUpstream dials and authenticates one vendor connection. Returns
// false when the session should back off and retry.
func (s *Session) connectUpstream() bool {
	up, err := s.dialer.Dial(s.ctx, s.onUpstreamFrame, s.onUpstreamClose)
	if err != nil {
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateNoUpstream
		}
		closed := s.state == StateClosed
		s.mu.Unlock()

		if !closed {
			s.Logger.Warning("upstream dial failed: %v", err)
		}
		return false
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		up.Close()
		return true
	}
	s.upstream = up
	s.state = StateStreaming
	// The connection can die before the handle is recorded, in which case
	// its close notification has already fired against a nil handle and
	// nobody will redial. A dead handle here is a failed connect.
	if !up.IsOpen() {
		s.upstream = nil
		s.state = StateNoUpstream
		s.mu.Unlock()
		s.Logger.Warning("upstream dropped during connect")
		return false
	}
	set := s.subs
	replay := s.hasSubs && !set.IsEmpty()
	s.mu.Unlock()

	s.Logger.Info("upstream connected")
	s.audit("upstream_open", "")

	if replay {
		if err := up.SendSubscribe(set.SubscribeFrame()); err != nil {
			s.Logger.Warning("failed to replay subscriptions: %v", err)
		} else {
			s.Logger.Info("replayed subscription set after reconnect")
			s.audit("resubscribed", "")
		}
	}

	return true
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// nudge wakes the supervisor without blocking.
func (s *Session) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// audit records a session lifecycle event, best-effort.
func (s *Session) audit(event, detail string) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveSessionEvent(models.NewSessionEvent(s.ID, event, detail)); err != nil {
		s.Logger.Debug("failed to save session event: %v", err)
	}
}

// -----------------------------------------------------------------------------

func backoffDelay(attempt int) time.Duration {
	d := backoffBase << uint(attempt-1)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	// Jitter: 50-150% of the computed delay.
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}

// -----------------------------------------------------------------------------

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
