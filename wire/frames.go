// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "github.com/tourbase/chatkit/lib/ref"

// Frame type constants. Outbound types are sent by the client; inbound
// types arrive from the server. "ping"/"pong" are the heartbeat pair —
// pong never leaves the transport layer.
const (
	// Outbound.
	TypeJoin         = "join"
	TypeSendMessage  = "send_message"
	TypeTypingStart  = "typing_start"
	TypeTypingStop   = "typing_stop"
	TypeMessagesRead = "messages_read"
	TypeUpdateStatus = "update_status"
	TypePing         = "ping"

	// Inbound.
	TypeMessage             = "message"
	TypeMessageStatusUpdate = "message_status_update"
	TypeMessageRead         = "message_read"
	TypeUserStatusUpdate    = "user_status_update"
	TypePong                = "pong"
)

// UserInfo is the sender profile embedded in join frames and message
// payloads.
type UserInfo struct {
	ID        ref.UserID `json:"id"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar,omitempty"`
	Role      string     `json:"role,omitempty"`
}

// Attachment is a durable file reference produced by the upload
// endpoint. Immutable once attached to a message.
type Attachment struct {
	ID           string `json:"id"`
	Kind         string `json:"type"` // "image" or "file"
	Name         string `json:"name"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Location is a geographic point attached to location messages.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Address   string  `json:"address,omitempty"`
}

// JoinFrame announces the client on the conversation channel. Sent
// once after every successful connect, including reconnects.
type JoinFrame struct {
	Type           string             `json:"type"`
	ConversationID ref.ConversationID `json:"conversationId"`
	UserID         ref.UserID         `json:"userId"`
	UserInfo       UserInfo           `json:"userInfo"`
}

// NewJoinFrame builds a join frame for the given conversation and user.
func NewJoinFrame(conversationID ref.ConversationID, user UserInfo) JoinFrame {
	return JoinFrame{
		Type:           TypeJoin,
		ConversationID: conversationID,
		UserID:         user.ID,
		UserInfo:       user,
	}
}

// SendMessageFrame carries one outbound message. The message ID is
// client-generated; the server echoes it back in the corresponding
// inbound message frame, which is what makes optimistic-echo
// deduplication possible.
type SendMessageFrame struct {
	Type           string             `json:"type"`
	MessageID      ref.MessageID      `json:"messageId"`
	ConversationID ref.ConversationID `json:"conversationId"`
	Content        string             `json:"content"`
	MessageType    string             `json:"messageType"`
	ReplyToID      ref.MessageID      `json:"replyToId,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	Attachments    []Attachment       `json:"attachments,omitempty"`
	Location       *Location          `json:"location,omitempty"`
	BookingID      ref.BookingID      `json:"bookingId,omitempty"`
}

// TypingFrame signals the start or stop of local typing. frameType
// must be TypeTypingStart or TypeTypingStop.
type TypingFrame struct {
	Type           string             `json:"type"`
	ConversationID ref.ConversationID `json:"conversationId"`
	UserID         ref.UserID         `json:"userId"`
}

// NewTypingFrame builds a typing_start or typing_stop frame.
func NewTypingFrame(frameType string, conversationID ref.ConversationID, userID ref.UserID) TypingFrame {
	return TypingFrame{
		Type:           frameType,
		ConversationID: conversationID,
		UserID:         userID,
	}
}

// MessagesReadFrame tells peers that the local user has read the
// listed messages, so their receipt lists update live. Sent only after
// the read state has been persisted over REST.
type MessagesReadFrame struct {
	Type           string             `json:"type"`
	ConversationID ref.ConversationID `json:"conversationId"`
	MessageIDs     []ref.MessageID    `json:"messageIds"`
	UserID         ref.UserID         `json:"userId"`
}

// NewMessagesReadFrame builds a messages_read frame.
func NewMessagesReadFrame(conversationID ref.ConversationID, userID ref.UserID, messageIDs []ref.MessageID) MessagesReadFrame {
	return MessagesReadFrame{
		Type:           TypeMessagesRead,
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		UserID:         userID,
	}
}

// UpdateStatusFrame publishes the local user's presence. The client
// does not track its own presence; this is fire-and-forget.
type UpdateStatusFrame struct {
	Type         string     `json:"type"`
	UserID       ref.UserID `json:"userId"`
	OnlineStatus string     `json:"onlineStatus"`
}

// NewUpdateStatusFrame builds an update_status frame.
func NewUpdateStatusFrame(userID ref.UserID, status string) UpdateStatusFrame {
	return UpdateStatusFrame{
		Type:         TypeUpdateStatus,
		UserID:       userID,
		OnlineStatus: status,
	}
}

// PingFrame is the heartbeat probe. The server answers with a pong
// frame that the transport swallows.
type PingFrame struct {
	Type string `json:"type"`
}

// NewPingFrame builds a heartbeat ping.
func NewPingFrame() PingFrame {
	return PingFrame{Type: TypePing}
}
