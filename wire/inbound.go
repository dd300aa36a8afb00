// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"

	"github.com/tourbase/chatkit/lib/ref"
)

// Frame is the envelope every inbound frame decodes into. Data holds
// the type-specific payload for the dispatcher to unmarshal once it
// has matched the type; the flat fields cover the event kinds the
// server sends without a data object.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`

	// Flat fields used by message_status_update, message_read,
	// typing_start/stop, and user_status_update frames.
	MessageID    ref.MessageID `json:"messageId,omitempty"`
	UserID       ref.UserID    `json:"userId,omitempty"`
	Status       string        `json:"status,omitempty"`
	OnlineStatus string        `json:"onlineStatus,omitempty"`
}

// Decode parses a raw socket frame into the envelope. Unknown frame
// types decode successfully — ignoring them is the dispatcher's call.
// Malformed JSON or a missing type is an error; the dispatcher logs
// and drops such frames without crashing the receive loop.
func Decode(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("wire: malformed frame: %w", err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("wire: frame missing type field")
	}
	return frame, nil
}

// MessagePayload is the data object of an inbound message frame. It is
// also the message shape returned by the REST history endpoint — the
// backend serializes messages identically on both paths.
type MessagePayload struct {
	ID             ref.MessageID      `json:"id"`
	ConversationID ref.ConversationID `json:"conversationId"`
	Sender         UserInfo           `json:"sender"`
	Content        string             `json:"content"`
	MessageType    string             `json:"type"`
	Status         string             `json:"status,omitempty"`
	Timestamp      string             `json:"timestamp"` // RFC 3339
	ReadBy         []ReadReceipt      `json:"readBy,omitempty"`
	Attachments    []Attachment       `json:"attachments,omitempty"`
	ReplyToID      ref.MessageID      `json:"replyToId,omitempty"`
	Location       *Location          `json:"location,omitempty"`
	Booking        *BookingInfo       `json:"booking,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
}

// ReadReceipt records that one user has read a message.
type ReadReceipt struct {
	UserID ref.UserID `json:"userId"`
	ReadAt string     `json:"readAt,omitempty"` // RFC 3339
}

// BookingInfo is the resolved booking reference embedded in
// booking-reference messages.
type BookingInfo struct {
	ID           ref.BookingID `json:"id"`
	ServiceTitle string        `json:"serviceTitle,omitempty"`
	Date         string        `json:"date,omitempty"`
	Status       string        `json:"status,omitempty"`
}

// ReadPayload is the data object of an inbound message_read frame.
type ReadPayload struct {
	MessageID ref.MessageID `json:"messageId"`
	UserID    ref.UserID    `json:"userId"`
	ReadAt    string        `json:"readAt,omitempty"` // RFC 3339
}

// TypingPayload is the data object of inbound typing_start and
// typing_stop frames.
type TypingPayload struct {
	ConversationID ref.ConversationID `json:"conversationId"`
	UserID         ref.UserID         `json:"userId"`
	UserName       string             `json:"userName,omitempty"`
}

// StatusUpdatePayload is the data object of an inbound
// message_status_update frame.
type StatusUpdatePayload struct {
	MessageID ref.MessageID `json:"messageId"`
	Status    string        `json:"status"`
}

// PresencePayload is the data object of an inbound user_status_update
// frame.
type PresencePayload struct {
	UserID       ref.UserID `json:"userId"`
	OnlineStatus string     `json:"onlineStatus"`
}
