// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"slices"
	"time"

	"github.com/tourbase/chatkit/api"
	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/transport"
	"github.com/tourbase/chatkit/upload"
	"github.com/tourbase/chatkit/wire"
)

// ConnState is the session's connection lifecycle state.
type ConnState string

const (
	// StateLoading is the initial state while bootstrap runs.
	StateLoading ConnState = "loading"
	// StateConnecting covers the first connect and reconnect windows.
	StateConnecting ConnState = "connecting"
	StateConnected  ConnState = "connected"
	// StateDisconnected means the socket dropped; the transport may
	// still be retrying.
	StateDisconnected ConnState = "disconnected"
	// StateErrored is terminal for the session: bootstrap failed or
	// the reconnect budget ran out.
	StateErrored ConnState = "errored"
)

// MessageStatus is the delivery lifecycle of one message. Transitions
// only move forward through sending, sent, delivered, read; failed is
// terminal and reachable only from sending.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Message kinds.
const (
	KindText             = "text"
	KindImage            = "image"
	KindFile             = "file"
	KindLocation         = "location"
	KindBookingReference = "booking_reference"
)

// Message is one entry in the conversation, optimistic or confirmed.
type Message struct {
	ID             ref.MessageID
	ConversationID ref.ConversationID
	Sender         wire.UserInfo
	Content        string
	Kind           string
	Status         MessageStatus
	Timestamp      time.Time
	ReadBy         []wire.ReadReceipt
	Attachments    []wire.Attachment
	ReplyToID      ref.MessageID
	Location       *wire.Location
	Booking        *wire.BookingInfo
	Metadata       map[string]any

	// Err is the send failure, set when Status is StatusFailed.
	Err error
	// Outbound is the frame that was (or would have been) written for
	// a locally-sent message. Retained on failure so a retry can
	// re-issue the identical payload.
	Outbound *wire.SendMessageFrame
}

// clone returns a copy safe to hand outside the session lock.
func (m *Message) clone() Message {
	copied := *m
	copied.ReadBy = slices.Clone(m.ReadBy)
	copied.Attachments = slices.Clone(m.Attachments)
	return copied
}

// TypingIndicator marks a remote participant as currently typing.
type TypingIndicator struct {
	UserID    ref.UserID
	UserName  string
	StartedAt time.Time
}

// Snapshot is a deep-copied, lock-free view of the session state.
type Snapshot struct {
	State ConnState
	// LoadError is the bootstrap failure, if any.
	LoadError error
	// ConnectionError is set once the transport gives up reconnecting.
	ConnectionError bool
	Conversation    *api.Conversation
	Messages        []Message
	Typing          []TypingIndicator
	LocalTyping     bool
}

// SendMessageRequest describes one outbound message.
type SendMessageRequest struct {
	Content string
	// Kind defaults to KindText.
	Kind      string
	ReplyToID ref.MessageID
	Metadata  map[string]any
	// Files are uploaded before the frame is emitted; failed files are
	// dropped from the attachment list.
	Files    []upload.File
	Location *wire.Location
	// BookingID attaches a booking reference, resolved over REST.
	BookingID ref.BookingID
}

// Transport is the socket surface the session needs.
// *transport.Socket implements it.
type Transport interface {
	Connect()
	Send(payload any) bool
	On(event transport.Event, handler transport.Handler) int
	Off(event transport.Event, id int)
	Close()
	Status() transport.Status
}

var _ Transport = (*transport.Socket)(nil)

// API is the REST surface the session needs. *api.Client implements it.
type API interface {
	GetConversation(ctx context.Context, conversationID ref.ConversationID) (*api.Conversation, error)
	GetMessages(ctx context.Context, conversationID ref.ConversationID, limit int) ([]wire.MessagePayload, error)
	MarkRead(ctx context.Context, conversationID ref.ConversationID, messageIDs []ref.MessageID) error
	GetBooking(ctx context.Context, bookingID ref.BookingID) (*wire.BookingInfo, error)
}

var _ API = (*api.Client)(nil)

// Uploader resolves local files into attachments. *upload.Tracker
// implements it.
type Uploader interface {
	UploadBatch(ctx context.Context, conversationID ref.ConversationID, files []upload.File) ([]wire.Attachment, error)
}

var _ Uploader = (*upload.Tracker)(nil)
