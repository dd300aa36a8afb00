// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tourbase/chatkit/api"
	"github.com/tourbase/chatkit/lib/clock"
	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/lib/telemetry"
	"github.com/tourbase/chatkit/transport"
	"github.com/tourbase/chatkit/wire"
)

// Defaults for SessionConfig fields left zero.
const (
	DefaultTypingTimeout = 3 * time.Second
	DefaultHistoryLimit  = 50
)

// refreshTimeout bounds the automatic catch-up fetch after a reconnect.
const refreshTimeout = 30 * time.Second

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	// ConversationID scopes the session. Required.
	ConversationID ref.ConversationID
	// LocalUser is the authenticated user's profile. Required.
	LocalUser wire.UserInfo
	// API performs REST calls. Required.
	API API
	// Transport carries the live socket. Required.
	Transport Transport
	// Uploader resolves attachments. Required only when messages carry
	// files.
	Uploader Uploader
	// Clock drives typing timers. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Metrics receives counters. May be nil.
	Metrics *telemetry.Metrics
	// DisableTypingIndicators turns StartTyping/StopTyping into no-ops
	// and drops inbound typing frames.
	DisableTypingIndicators bool
	// TypingTimeout is the local debounce window and the remote
	// indicator expiry. Zero means DefaultTypingTimeout.
	TypingTimeout time.Duration
	// HistoryLimit is how many messages bootstrap requests. Zero means
	// DefaultHistoryLimit.
	HistoryLimit int
	// OnUpdate, when set, runs synchronously after every state
	// mutation with a fresh snapshot. It must not call back into the
	// session.
	OnUpdate func(Snapshot)
}

// Session drives one conversation. Create with NewSession, hydrate and
// connect with Start, tear down with Close. Safe for concurrent use.
type Session struct {
	conversationID ref.ConversationID
	localUser      wire.UserInfo
	api            API
	transport      Transport
	uploader       Uploader
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	typingDisabled bool
	typingTimeout  time.Duration
	historyLimit   int
	onUpdate       func(Snapshot)

	mu              sync.Mutex
	state           ConnState
	loadError       error
	connectionError bool
	conversation    *api.Conversation
	messages        []*Message
	byID            map[ref.MessageID]*Message
	typing          map[ref.UserID]*TypingIndicator
	typingTimers    map[ref.UserID]*clock.Timer
	localTyping     bool
	localTimer      *clock.Timer
	hasConnected    bool
	closed          bool

	handlerIDs map[transport.Event]int
}

// NewSession creates a Session and registers its transport handlers.
// The socket is not touched until Start.
func NewSession(config SessionConfig) (*Session, error) {
	if config.ConversationID.IsZero() {
		return nil, fmt.Errorf("chat: ConversationID is required")
	}
	if config.LocalUser.ID.IsZero() {
		return nil, fmt.Errorf("chat: LocalUser is required")
	}
	if config.API == nil {
		return nil, fmt.Errorf("chat: API is required")
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("chat: Transport is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	typingTimeout := config.TypingTimeout
	if typingTimeout == 0 {
		typingTimeout = DefaultTypingTimeout
	}
	historyLimit := config.HistoryLimit
	if historyLimit == 0 {
		historyLimit = DefaultHistoryLimit
	}

	s := &Session{
		conversationID: config.ConversationID,
		localUser:      config.LocalUser,
		api:            config.API,
		transport:      config.Transport,
		uploader:       config.Uploader,
		clock:          clk,
		logger:         logger.With("conversation", config.ConversationID),
		metrics:        config.Metrics,
		typingDisabled: config.DisableTypingIndicators,
		typingTimeout:  typingTimeout,
		historyLimit:   historyLimit,
		onUpdate:       config.OnUpdate,
		state:          StateLoading,
		byID:           make(map[ref.MessageID]*Message),
		typing:         make(map[ref.UserID]*TypingIndicator),
		typingTimers:   make(map[ref.UserID]*clock.Timer),
	}

	s.handlerIDs = map[transport.Event]int{
		transport.EventOpen:    s.transport.On(transport.EventOpen, func(any) { s.handleOpen() }),
		transport.EventMessage: s.transport.On(transport.EventMessage, func(payload any) { s.dispatch(payload.([]byte)) }),
		transport.EventClose:   s.transport.On(transport.EventClose, func(payload any) { s.handleClose(payload.(transport.CloseInfo)) }),
		transport.EventError:   s.transport.On(transport.EventError, func(payload any) { s.handleTransportError(payload.(error)) }),
		transport.EventMaxReconnectAttemptsReached: s.transport.On(transport.EventMaxReconnectAttemptsReached, func(any) { s.handleReconnectExhausted() }),
	}
	return s, nil
}

// Start hydrates the session and opens the socket. Bootstrap is
// all-or-nothing: if either fetch fails, the session moves to
// StateErrored with its load error set and no partial state applied.
func (s *Session) Start(ctx context.Context) error {
	conversation, messages, err := s.bootstrap(ctx)
	if err != nil {
		s.mu.Lock()
		s.loadError = err
		s.state = StateErrored
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	s.applyBootstrapLocked(conversation, messages)
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify()

	s.transport.Connect()
	return nil
}

// bootstrap fetches conversation metadata and recent history
// concurrently.
func (s *Session) bootstrap(ctx context.Context) (*api.Conversation, []wire.MessagePayload, error) {
	var (
		group        sync.WaitGroup
		conversation *api.Conversation
		messages     []wire.MessagePayload
		convErr      error
		historyErr   error
	)

	group.Add(2)
	go func() {
		defer group.Done()
		conversation, convErr = s.api.GetConversation(ctx, s.conversationID)
	}()
	go func() {
		defer group.Done()
		messages, historyErr = s.api.GetMessages(ctx, s.conversationID, s.historyLimit)
	}()
	group.Wait()

	if convErr != nil {
		return nil, nil, fmt.Errorf("chat: bootstrap: %w", convErr)
	}
	if historyErr != nil {
		return nil, nil, fmt.Errorf("chat: bootstrap: %w", historyErr)
	}
	return conversation, messages, nil
}

func (s *Session) applyBootstrapLocked(conversation *api.Conversation, payloads []wire.MessagePayload) {
	s.conversation = conversation
	s.loadError = nil
	s.messages = s.messages[:0]
	s.byID = make(map[ref.MessageID]*Message, len(payloads))
	for _, payload := range payloads {
		message := s.messageFromPayload(payload)
		s.messages = append(s.messages, message)
		s.byID[message.ID] = message
	}
}

func (s *Session) messageFromPayload(payload wire.MessagePayload) *Message {
	timestamp, err := time.Parse(time.RFC3339, payload.Timestamp)
	if err != nil {
		timestamp = s.clock.Now()
	}
	status := MessageStatus(payload.Status)
	if status == "" {
		status = StatusSent
	}
	kind := payload.MessageType
	if kind == "" {
		kind = KindText
	}
	return &Message{
		ID:             payload.ID,
		ConversationID: payload.ConversationID,
		Sender:         payload.Sender,
		Content:        payload.Content,
		Kind:           kind,
		Status:         status,
		Timestamp:      timestamp,
		ReadBy:         payload.ReadBy,
		Attachments:    payload.Attachments,
		ReplyToID:      payload.ReplyToID,
		Location:       payload.Location,
		Booking:        payload.Booking,
		Metadata:       payload.Metadata,
	}
}

// SendMessage appends the message optimistically and emits it through
// the socket. It returns the message as it stands when the call
// completes: status sent on success, failed (with the outbound payload
// retained) alongside a *SendError when the write is rejected.
// Requires StateConnected; otherwise returns *NotConnectedError
// without mutating anything.
func (s *Session) SendMessage(ctx context.Context, request SendMessageRequest) (Message, error) {
	kind := request.Kind
	if kind == "" {
		kind = KindText
	}

	s.mu.Lock()
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		return Message{}, &NotConnectedError{State: state}
	}
	message := &Message{
		ID:             ref.NewMessageID(),
		ConversationID: s.conversationID,
		Sender:         s.localUser,
		Content:        request.Content,
		Kind:           kind,
		Status:         StatusSending,
		Timestamp:      s.clock.Now(),
		ReplyToID:      request.ReplyToID,
		Location:       request.Location,
		Metadata:       request.Metadata,
	}
	s.messages = append(s.messages, message)
	s.byID[message.ID] = message
	s.mu.Unlock()
	s.notify()

	attachments, err := s.resolveAttachments(ctx, request)
	if err != nil {
		return s.failMessage(message.ID, err)
	}

	var booking *wire.BookingInfo
	if !request.BookingID.IsZero() {
		booking, err = s.api.GetBooking(ctx, request.BookingID)
		if err != nil {
			// The reference still goes out by ID; the server resolves
			// it for recipients.
			s.logger.Warn("booking lookup failed", "booking", request.BookingID, "error", err)
		}
	}

	frame := &wire.SendMessageFrame{
		Type:           wire.TypeSendMessage,
		MessageID:      message.ID,
		ConversationID: s.conversationID,
		Content:        request.Content,
		MessageType:    kind,
		ReplyToID:      request.ReplyToID,
		Metadata:       request.Metadata,
		Attachments:    attachments,
		Location:       request.Location,
		BookingID:      request.BookingID,
	}

	s.mu.Lock()
	message.Attachments = attachments
	message.Booking = booking
	message.Outbound = frame
	s.mu.Unlock()

	if !s.transport.Send(frame) {
		return s.failMessage(message.ID, &SendError{
			MessageID: message.ID.String(),
			Reason:    "transport write rejected",
		})
	}

	s.mu.Lock()
	advanceStatus(message, StatusSent)
	snapshot := message.clone()
	s.mu.Unlock()
	s.metrics.SendOutcome("sent")
	s.notify()
	return snapshot, nil
}

func (s *Session) resolveAttachments(ctx context.Context, request SendMessageRequest) ([]wire.Attachment, error) {
	if len(request.Files) == 0 {
		return nil, nil
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("chat: message carries files but no uploader is configured")
	}

	attachments, err := s.uploader.UploadBatch(ctx, s.conversationID, request.Files)
	if err != nil {
		if len(attachments) == 0 {
			return nil, err
		}
		// Partial success: send what made it.
		s.logger.Warn("some attachments failed to upload", "error", err)
	}
	return attachments, nil
}

// failMessage rolls the message to failed and returns the error the
// caller sees.
func (s *Session) failMessage(messageID ref.MessageID, cause error) (Message, error) {
	s.mu.Lock()
	var snapshot Message
	if message, ok := s.byID[messageID]; ok {
		advanceStatus(message, StatusFailed)
		message.Err = cause
		snapshot = message.clone()
	}
	s.mu.Unlock()
	s.metrics.SendOutcome("failed")
	s.logger.Warn("message send failed", "message", messageID, "error", cause)
	s.notify()
	return snapshot, cause
}

// StartTyping emits typing_start and arms the auto-stop timer. Calls
// within the debounce window only push the timer out; no second frame
// is emitted until typing has stopped.
func (s *Session) StartTyping() {
	if s.typingDisabled {
		return
	}

	s.mu.Lock()
	if s.closed || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	if s.localTyping {
		s.localTimer.Reset(s.typingTimeout)
		s.mu.Unlock()
		return
	}
	s.localTyping = true
	s.localTimer = s.clock.AfterFunc(s.typingTimeout, s.StopTyping)
	s.mu.Unlock()

	if !s.transport.Send(wire.NewTypingFrame(wire.TypeTypingStart, s.conversationID, s.localUser.ID)) {
		// The frame never left, so peers saw nothing. Roll back so the
		// next call retries instead of waiting out the debounce window.
		s.mu.Lock()
		s.localTyping = false
		if s.localTimer != nil {
			s.localTimer.Stop()
			s.localTimer = nil
		}
		s.mu.Unlock()
		s.logger.Debug("typing_start dropped, socket not open")
		return
	}
	s.notify()
}

// StopTyping emits typing_stop. A no-op when not currently typing.
func (s *Session) StopTyping() {
	if s.typingDisabled {
		return
	}

	s.mu.Lock()
	if !s.localTyping {
		s.mu.Unlock()
		return
	}
	s.localTyping = false
	if s.localTimer != nil {
		s.localTimer.Stop()
		s.localTimer = nil
	}
	s.mu.Unlock()

	s.transport.Send(wire.NewTypingFrame(wire.TypeTypingStop, s.conversationID, s.localUser.ID))
	s.notify()
}

// MarkAsRead records the local user's read state for messages authored
// by others, optionally restricted to the given IDs. When nothing is
// unread the call returns immediately without touching the network.
// Persistence goes through REST first; only then is the messages_read
// frame emitted and local receipt state updated.
func (s *Session) MarkAsRead(ctx context.Context, messageIDs ...ref.MessageID) error {
	var filter map[ref.MessageID]bool
	if len(messageIDs) > 0 {
		filter = make(map[ref.MessageID]bool, len(messageIDs))
		for _, id := range messageIDs {
			filter[id] = true
		}
	}

	s.mu.Lock()
	var unread []ref.MessageID
	for _, message := range s.messages {
		if message.Sender.ID == s.localUser.ID {
			continue
		}
		if filter != nil && !filter[message.ID] {
			continue
		}
		if hasReceipt(message, s.localUser.ID) {
			continue
		}
		unread = append(unread, message.ID)
	}
	s.mu.Unlock()

	if len(unread) == 0 {
		return nil
	}

	if err := s.api.MarkRead(ctx, s.conversationID, unread); err != nil {
		return fmt.Errorf("chat: persisting read state: %w", err)
	}
	s.transport.Send(wire.NewMessagesReadFrame(s.conversationID, s.localUser.ID, unread))

	readAt := s.clock.Now().UTC().Format(time.RFC3339)
	s.mu.Lock()
	for _, id := range unread {
		if message, ok := s.byID[id]; ok {
			upsertReceipt(message, s.localUser.ID, readAt)
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// UpdateOnlineStatus publishes the local user's presence. The local
// user's own presence is not tracked in session state.
func (s *Session) UpdateOnlineStatus(status string) {
	if !s.transport.Send(wire.NewUpdateStatusFrame(s.localUser.ID, status)) {
		s.logger.Debug("presence update dropped, socket not open", "status", status)
	}
}

// RefreshConversation re-runs the bootstrap fetch and replaces local
// state atomically. On failure the existing state is left untouched.
func (s *Session) RefreshConversation(ctx context.Context) error {
	conversation, messages, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.applyBootstrapLocked(conversation, messages)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Close tears the session down: socket closed, reconnection disabled,
// every typing timer cancelled. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateDisconnected
	if s.localTimer != nil {
		s.localTimer.Stop()
		s.localTimer = nil
	}
	s.localTyping = false
	for userID, timer := range s.typingTimers {
		timer.Stop()
		delete(s.typingTimers, userID)
	}
	s.mu.Unlock()

	for event, id := range s.handlerIDs {
		s.transport.Off(event, id)
	}
	s.transport.Close()
}

// Snapshot returns a deep copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:           s.state,
		LoadError:       s.loadError,
		ConnectionError: s.connectionError,
		LocalTyping:     s.localTyping,
	}
	if s.conversation != nil {
		conversation := *s.conversation
		conversation.Participants = append([]api.Participant(nil), s.conversation.Participants...)
		snapshot.Conversation = &conversation
	}
	snapshot.Messages = make([]Message, 0, len(s.messages))
	for _, message := range s.messages {
		snapshot.Messages = append(snapshot.Messages, message.clone())
	}
	for _, indicator := range s.typing {
		snapshot.Typing = append(snapshot.Typing, *indicator)
	}
	return snapshot
}

// notify delivers a fresh snapshot to the OnUpdate callback. Called
// after every mutation, outside the lock.
func (s *Session) notify() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.Snapshot())
}

func (s *Session) handleOpen() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.connectionError = false
	rejoined := s.hasConnected
	s.hasConnected = true
	s.mu.Unlock()

	s.transport.Send(wire.NewJoinFrame(s.conversationID, s.localUser))
	s.notify()

	if rejoined {
		// Messages sent during the outage never reached us; refetch
		// rather than trust the stream.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			if err := s.RefreshConversation(ctx); err != nil {
				s.logger.Warn("catch-up refresh after reconnect failed", "error", err)
			}
		}()
	}
}

func (s *Session) handleClose(info transport.CloseInfo) {
	s.mu.Lock()
	if s.closed || s.state == StateErrored {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()
	s.logger.Info("conversation socket closed", "code", info.Code)
	s.notify()
}

func (s *Session) handleTransportError(err error) {
	s.logger.Warn("transport error", "error", err)

	s.mu.Lock()
	if s.closed || s.state == StateErrored {
		s.mu.Unlock()
		return
	}
	// The transport is retrying.
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleReconnectExhausted() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connectionError = true
	s.state = StateErrored
	s.mu.Unlock()
	s.logger.Error("reconnect budget exhausted, session errored")
	s.notify()
}
