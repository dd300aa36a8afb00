// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourbase/chatkit/lib/clock"
)

var testUpgrader = websocket.Upgrader{}

// newWSServer starts a websocket test server and returns its ws:// URL.
// handler runs once per accepted connection.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := testUpgrader.Upgrade(writer, request, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestSocket(t *testing.T, url string, clk clock.Clock) *Socket {
	t.Helper()
	socket, err := NewSocket(Config{
		URL:   url,
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("NewSocket failed: %v", err)
	}
	t.Cleanup(socket.Close)
	return socket
}

// eventually polls condition until it holds or the deadline passes.
func eventually(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestNewSocketRejectsBadURL(t *testing.T) {
	for _, badURL := range []string{"", "http://chat.example/ws", "::not-a-url"} {
		if _, err := NewSocket(Config{URL: badURL}); err == nil {
			t.Errorf("NewSocket(%q) succeeded, want error", badURL)
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	var upgrades atomic.Int32
	url := newWSServer(t, func(conn *websocket.Conn) {
		upgrades.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	socket := newTestSocket(t, url, clock.Fake(time.Now()))
	opened := make(chan struct{}, 4)
	socket.On(EventOpen, func(any) { opened <- struct{}{} })

	socket.Connect()
	socket.Connect()
	<-opened
	socket.Connect()

	eventually(t, func() bool { return socket.Status() == StatusConnected }, "socket never reported connected")
	if got := upgrades.Load(); got != 1 {
		t.Errorf("server saw %d connections, want 1", got)
	}
}

func TestSendDeliversFrame(t *testing.T) {
	received := make(chan []byte, 1)
	url := newWSServer(t, func(conn *websocket.Conn) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- raw
	})

	socket := newTestSocket(t, url, clock.Fake(time.Now()))
	opened := make(chan struct{}, 1)
	socket.On(EventOpen, func(any) { opened <- struct{}{} })
	socket.Connect()
	<-opened

	if !socket.Send(map[string]string{"type": "join", "conversationId": "c1"}) {
		t.Fatal("Send returned false on a live connection")
	}

	select {
	case raw := <-received:
		var frame map[string]string
		if err := json.Unmarshal(raw, &frame); err != nil || frame["type"] != "join" {
			t.Errorf("server received %q", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestSendWhenDisconnected(t *testing.T) {
	socket := newTestSocket(t, "ws://127.0.0.1:1/ws", clock.Fake(time.Now()))
	if socket.Send(map[string]string{"type": "join"}) {
		t.Error("Send returned true without a connection")
	}
}

func TestHeartbeatPingsAndSwallowsPong(t *testing.T) {
	fake := clock.Fake(time.Now())
	inbound := make(chan []byte, 4)
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbound <- raw
			// Answer every ping with a pong followed by a chat frame,
			// so the test can observe what the client delivers.
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","data":{"id":"msg_1"}}`))
		}
	})

	socket := newTestSocket(t, url, fake)
	opened := make(chan struct{}, 1)
	messages := make(chan []byte, 4)
	socket.On(EventOpen, func(any) { opened <- struct{}{} })
	socket.On(EventMessage, func(payload any) { messages <- payload.([]byte) })
	socket.Connect()
	<-opened

	// The heartbeat ticker is registered once the connection is up.
	fake.WaitForTimers(1)
	fake.Advance(30 * time.Second)

	select {
	case raw := <-inbound:
		var frame map[string]string
		if err := json.Unmarshal(raw, &frame); err != nil || frame["type"] != "ping" {
			t.Fatalf("server received %q, want a ping", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ping after advancing past the heartbeat interval")
	}

	// The pong was written before the chat frame; receiving the chat
	// frame first proves the pong never reached the message handlers.
	select {
	case raw := <-messages:
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "message" {
			t.Errorf("first delivered frame was %q, want the chat message", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat frame never delivered")
	}
}

func TestReconnectBackoffGivesUp(t *testing.T) {
	// A server that is already gone: every dial fails fast.
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	fake := clock.Fake(time.Now())
	socket := newTestSocket(t, url, fake)

	var dialErrors atomic.Int32
	exhausted := make(chan struct{}, 1)
	socket.On(EventError, func(any) { dialErrors.Add(1) })
	socket.On(EventMaxReconnectAttemptsReached, func(any) { exhausted <- struct{}{} })

	socket.Connect()

	// The initial dial fails in its own goroutine; the first retry
	// timer appearing means that failure has been processed.
	fake.WaitForTimers(1)
	for _, delay := range []time.Duration{1, 2, 4, 8, 16} {
		fake.Advance(delay * time.Second)
	}

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("budget exhaustion never signalled")
	}
	if got := dialErrors.Load(); got != 6 {
		t.Errorf("dial errors = %d, want 6 (initial + 5 retries)", got)
	}
	if got := fake.PendingCount(); got != 0 {
		t.Errorf("pending timers after giving up = %d, want 0", got)
	}
	if got := socket.Status(); got != StatusDisconnected {
		t.Errorf("status = %q, want disconnected", got)
	}
}

func TestServerDropSchedulesReconnect(t *testing.T) {
	fake := clock.Fake(time.Now())
	var connections atomic.Int32
	url := newWSServer(t, func(conn *websocket.Conn) {
		if connections.Add(1) == 1 {
			// Kill the first connection without a close frame.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	socket := newTestSocket(t, url, fake)
	opened := make(chan struct{}, 2)
	closes := make(chan CloseInfo, 2)
	socket.On(EventOpen, func(any) { opened <- struct{}{} })
	socket.On(EventClose, func(payload any) { closes <- payload.(CloseInfo) })
	socket.Connect()
	<-opened

	select {
	case info := <-closes:
		if info.Code != websocket.CloseAbnormalClosure {
			t.Errorf("close code = %d, want abnormal closure", info.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close event never fired")
	}

	// Once the heartbeat ticker winds down, the single pending timer
	// is the retry.
	eventually(t, func() bool { return fake.PendingCount() == 1 }, "retry timer never registered")
	fake.Advance(time.Second)
	<-opened

	if socket.Status() != StatusConnected {
		t.Errorf("status after reconnect = %q, want connected", socket.Status())
	}
}

func TestCloseDisablesReconnection(t *testing.T) {
	fake := clock.Fake(time.Now())
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	socket := newTestSocket(t, url, fake)
	opened := make(chan struct{}, 1)
	closes := make(chan CloseInfo, 1)
	socket.On(EventOpen, func(any) { opened <- struct{}{} })
	socket.On(EventClose, func(payload any) { closes <- payload.(CloseInfo) })
	socket.Connect()
	<-opened

	socket.Close()

	select {
	case <-closes:
	case <-time.After(2 * time.Second):
		t.Fatal("close event never fired")
	}
	eventually(t, func() bool { return fake.PendingCount() == 0 }, "timers still pending after Close")

	// Closed for good: a further Connect is a no-op.
	socket.Connect()
	time.Sleep(20 * time.Millisecond)
	if got := socket.Status(); got != StatusDisconnected {
		t.Errorf("status after Connect on closed socket = %q, want disconnected", got)
	}
}

func TestOffRemovesHandler(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	socket := newTestSocket(t, url, clock.Fake(time.Now()))
	removedFired := make(chan struct{}, 1)
	opened := make(chan struct{}, 1)
	id := socket.On(EventOpen, func(any) { removedFired <- struct{}{} })
	socket.On(EventOpen, func(any) { opened <- struct{}{} })
	socket.Off(EventOpen, id)

	socket.Connect()
	<-opened

	select {
	case <-removedFired:
		t.Error("removed handler still fired")
	default:
	}
}
