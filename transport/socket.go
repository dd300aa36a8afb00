// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourbase/chatkit/lib/clock"
	"github.com/tourbase/chatkit/lib/telemetry"
	"github.com/tourbase/chatkit/wire"
)

// Defaults for Config fields left zero.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectBaseDelay   = time.Second
	DefaultMaxReconnectAttempts = 5
)

// writeWait bounds how long a single frame write may block.
const writeWait = 10 * time.Second

// Status is the connection state of a Socket.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Event identifies a Socket lifecycle or traffic event.
type Event string

const (
	// EventOpen fires after every successful connect, including
	// reconnects. Payload: nil.
	EventOpen Event = "open"

	// EventMessage fires for every inbound frame except heartbeat
	// pongs. Payload: the raw frame as []byte.
	EventMessage Event = "message"

	// EventClose fires when an established connection drops, whether
	// by Close or by failure. Payload: CloseInfo.
	EventClose Event = "close"

	// EventError fires on dial failures. Payload: error.
	EventError Event = "error"

	// EventMaxReconnectAttemptsReached fires once the reconnection
	// budget is exhausted. The socket stays down until the caller
	// builds a new one. Payload: nil.
	EventMaxReconnectAttemptsReached Event = "max_reconnect_attempts_reached"
)

// CloseInfo describes how a connection ended.
type CloseInfo struct {
	// Code is the websocket close code. CloseAbnormalClosure when the
	// connection dropped without a close frame.
	Code int
	// Reason is the close frame text, if any.
	Reason string
}

// Handler receives an event payload. See the Event constants for the
// concrete payload type of each event. Handlers run synchronously on
// the socket's internal goroutines and must not block.
type Handler func(payload any)

// Config holds configuration for creating a Socket.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://). Required.
	URL string
	// Dialer is used for all connection attempts. If nil,
	// websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// Clock drives the heartbeat and reconnect timers. If nil, the
	// real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Metrics receives counters. May be nil.
	Metrics *telemetry.Metrics
	// HeartbeatInterval is the ping cadence. Zero means
	// DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
	// ReconnectBaseDelay is the first retry delay; each further
	// attempt doubles it. Zero means DefaultReconnectBaseDelay.
	ReconnectBaseDelay time.Duration
	// MaxReconnectAttempts bounds automatic reconnection. Zero means
	// DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int
}

// Socket is a self-healing websocket connection.
//
// All methods are safe for concurrent use. Connect is asynchronous and
// idempotent; progress is reported through registered handlers rather
// than return values, mirroring how the rest of the client consumes
// the connection.
type Socket struct {
	url               string
	dialer            *websocket.Dialer
	clock             clock.Clock
	logger            *slog.Logger
	metrics           *telemetry.Metrics
	heartbeatInterval time.Duration
	baseDelay         time.Duration
	maxAttempts       int

	mu            sync.Mutex
	conn          *websocket.Conn
	status        Status
	attempts      int
	closed        bool
	dialing       bool
	retryTimer    *clock.Timer
	heartbeatStop chan struct{}
	nextHandlerID int
	handlers      map[Event]map[int]Handler

	// writeMu serializes frame writes; gorilla/websocket allows only
	// one concurrent writer.
	writeMu sync.Mutex
}

// NewSocket creates a Socket for the given endpoint. No connection is
// made until Connect.
func NewSocket(config Config) (*Socket, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transport: URL is required")
	}
	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid URL %q: %w", config.URL, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("transport: URL scheme must be ws or wss, got %q", parsed.Scheme)
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeatInterval := config.HeartbeatInterval
	if heartbeatInterval == 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	baseDelay := config.ReconnectBaseDelay
	if baseDelay == 0 {
		baseDelay = DefaultReconnectBaseDelay
	}
	maxAttempts := config.MaxReconnectAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxReconnectAttempts
	}

	return &Socket{
		url:               config.URL,
		dialer:            dialer,
		clock:             clk,
		logger:            logger,
		metrics:           config.Metrics,
		heartbeatInterval: heartbeatInterval,
		baseDelay:         baseDelay,
		maxAttempts:       maxAttempts,
		status:            StatusDisconnected,
		handlers:          make(map[Event]map[int]Handler),
	}, nil
}

// On registers a handler for an event and returns an id for Off.
func (s *Socket) On(event Event, handler Handler) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandlerID++
	id := s.nextHandlerID
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]Handler)
	}
	s.handlers[event][id] = handler
	return id
}

// Off removes a handler registered with On. Unknown ids are ignored.
func (s *Socket) Off(event Event, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[event], id)
}

func (s *Socket) emit(event Event, payload any) {
	s.mu.Lock()
	registered := make([]Handler, 0, len(s.handlers[event]))
	for _, handler := range s.handlers[event] {
		registered = append(registered, handler)
	}
	s.mu.Unlock()

	for _, handler := range registered {
		handler(payload)
	}
}

// Status returns the current connection state.
func (s *Socket) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect starts the connection attempt. It returns immediately;
// success is reported through the open event, failure through the
// error event followed by automatic retries. Calling Connect while a
// connection is live or in progress, or after Close, does nothing.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.closed || s.dialing || s.status == StatusConnected {
		s.mu.Unlock()
		return
	}
	s.dialing = true
	s.status = StatusConnecting
	s.mu.Unlock()

	go s.dial()
}

func (s *Socket) dial() {
	conn, _, err := s.dialer.Dial(s.url, nil)

	s.mu.Lock()
	s.dialing = false
	if s.closed {
		s.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.status = StatusDisconnected
		s.mu.Unlock()
		s.logger.Warn("socket dial failed", "url", s.url, "error", err)
		s.emit(EventError, err)
		s.scheduleReconnect()
		return
	}

	s.conn = conn
	s.status = StatusConnected
	s.attempts = 0
	stop := make(chan struct{})
	s.heartbeatStop = stop
	s.mu.Unlock()

	s.logger.Info("socket connected", "url", s.url)
	go s.heartbeat(conn, stop)
	go s.readLoop(conn)
	s.emit(EventOpen, nil)
}

// scheduleReconnect arms the next retry timer. The nth attempt waits
// base<<(n-1), so with the defaults: 1s, 2s, 4s, 8s, 16s, then give up.
func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.maxAttempts {
		s.mu.Unlock()
		s.logger.Error("socket reconnect budget exhausted", "attempts", s.maxAttempts)
		s.emit(EventMaxReconnectAttemptsReached, nil)
		return
	}
	delay := s.baseDelay << s.attempts
	s.attempts++
	attempt := s.attempts
	s.retryTimer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed || s.dialing || s.status == StatusConnected {
			s.mu.Unlock()
			return
		}
		s.dialing = true
		s.status = StatusConnecting
		s.mu.Unlock()

		s.metrics.ReconnectAttempt()
		s.logger.Info("socket reconnecting", "attempt", attempt, "delay", delay)
		s.dial()
	})
	s.mu.Unlock()
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.connectionLost(conn, err)
			return
		}

		// Heartbeat pongs terminate here.
		var probe struct {
			Type string `json:"type"`
		}
		if probeErr := json.Unmarshal(raw, &probe); probeErr == nil && probe.Type == wire.TypePong {
			continue
		}
		s.emit(EventMessage, raw)
	}
}

func (s *Socket) connectionLost(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// A stale read loop from an already-replaced connection.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.status = StatusDisconnected
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
	closed := s.closed
	s.mu.Unlock()

	conn.Close()

	info := CloseInfo{Code: websocket.CloseAbnormalClosure}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		info = CloseInfo{Code: closeErr.Code, Reason: closeErr.Text}
	}
	s.logger.Info("socket closed", "code", info.Code, "reason", info.Reason)
	s.emit(EventClose, info)

	if closed || info.Code == websocket.CloseNormalClosure {
		return
	}
	s.scheduleReconnect()
}

func (s *Socket) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := s.clock.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.write(conn, wire.NewPingFrame()) {
				return
			}
			s.metrics.HeartbeatPing()
		}
	}
}

// Send marshals v and writes it as one text frame. Returns false when
// the socket is not connected or the write fails; the caller decides
// whether that is an error worth surfacing.
func (s *Socket) Send(v any) bool {
	s.mu.Lock()
	conn := s.conn
	connected := s.status == StatusConnected && conn != nil
	s.mu.Unlock()

	if !connected {
		return false
	}
	return s.write(conn, v)
}

func (s *Socket) write(conn *websocket.Conn, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("socket frame marshal failed", "error", err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("socket write failed", "error", err)
		return false
	}
	return true
}

// Close shuts the connection down and disables reconnection
// permanently. Safe to call more than once.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.mu.Unlock()

	if conn == nil {
		return
	}
	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	conn.Close()
}
