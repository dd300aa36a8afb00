// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"

	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/wire"
)

// dispatch applies one inbound frame to session state. Frames are
// handled in arrival order on the transport's read goroutine; every
// handler runs to completion before the next frame is looked at.
// Nothing in here may panic the loop: malformed frames are dropped and
// unknown types ignored.
func (s *Session) dispatch(raw []byte) {
	frame, err := wire.Decode(raw)
	if err != nil {
		s.metrics.FrameDropped()
		s.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	// Each handler reports whether it changed session state. A frame
	// the handler rejected or had nothing to apply to must not count
	// as received, and must not wake snapshot observers.
	var applied bool
	switch frame.Type {
	case wire.TypeMessage:
		applied = s.handleMessageFrame(frame)
	case wire.TypeMessageStatusUpdate:
		applied = s.handleStatusUpdateFrame(frame)
	case wire.TypeMessageRead:
		applied = s.handleReadFrame(frame)
	case wire.TypeTypingStart:
		applied = s.handleTypingStartFrame(frame)
	case wire.TypeTypingStop:
		applied = s.handleTypingStopFrame(frame)
	case wire.TypeUserStatusUpdate:
		applied = s.handlePresenceFrame(frame)
	default:
		s.logger.Debug("ignoring unknown frame type", "type", frame.Type)
		return
	}
	if !applied {
		return
	}

	s.metrics.FrameReceived(frame.Type)
	s.notify()
}

func (s *Session) handleMessageFrame(frame wire.Frame) bool {
	var payload wire.MessagePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		s.metrics.FrameDropped()
		s.logger.Warn("dropping message frame with bad payload", "error", err)
		return false
	}
	if payload.ID.IsZero() {
		s.metrics.FrameDropped()
		s.logger.Warn("dropping message frame without id")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[payload.ID]; ok {
		// Server echo of a message we already hold (usually our own
		// optimistic copy). Merge into it; a second list entry would
		// show the sender their message twice.
		return s.mergeLocked(existing, payload)
	}

	message := s.messageFromPayload(payload)
	s.messages = append(s.messages, message)
	s.byID[message.ID] = message
	return true
}

// mergeLocked folds a server copy into an existing local message,
// reporting whether anything changed. Identity and content are
// already right; what the server adds is delivery progress and
// receipt state.
func (s *Session) mergeLocked(existing *Message, payload wire.MessagePayload) bool {
	var changed bool
	if payload.Status != "" {
		changed = advanceStatus(existing, MessageStatus(payload.Status))
	} else {
		changed = advanceStatus(existing, StatusSent)
	}
	if len(payload.ReadBy) > 0 {
		existing.ReadBy = payload.ReadBy
		changed = true
	}
	if len(payload.Attachments) > 0 {
		existing.Attachments = payload.Attachments
		changed = true
	}
	if payload.Booking != nil {
		existing.Booking = payload.Booking
		changed = true
	}
	return changed
}

func (s *Session) handleStatusUpdateFrame(frame wire.Frame) bool {
	messageID, status := frame.MessageID, frame.Status
	if len(frame.Data) > 0 {
		var payload wire.StatusUpdatePayload
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			messageID, status = payload.MessageID, payload.Status
		}
	}
	if messageID.IsZero() || status == "" {
		s.metrics.FrameDropped()
		s.logger.Warn("dropping status update without message id or status")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.byID[messageID]
	if !ok {
		return false
	}
	return advanceStatus(message, MessageStatus(status))
}

func (s *Session) handleReadFrame(frame wire.Frame) bool {
	messageID, userID, readAt := frame.MessageID, frame.UserID, ""
	if len(frame.Data) > 0 {
		var payload wire.ReadPayload
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			messageID, userID, readAt = payload.MessageID, payload.UserID, payload.ReadAt
		}
	}
	if messageID.IsZero() || userID.IsZero() {
		s.metrics.FrameDropped()
		s.logger.Warn("dropping read receipt without message or user id")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.byID[messageID]
	if !ok {
		return false
	}
	upsertReceipt(message, userID, readAt)
	return true
}

func (s *Session) handleTypingStartFrame(frame wire.Frame) bool {
	if s.typingDisabled {
		return false
	}
	userID, userName := frame.UserID, ""
	if len(frame.Data) > 0 {
		var payload wire.TypingPayload
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			userID, userName = payload.UserID, payload.UserName
		}
	}
	if userID.IsZero() || userID == s.localUser.ID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indicator, ok := s.typing[userID]; ok {
		indicator.StartedAt = s.clock.Now()
		if userName != "" {
			indicator.UserName = userName
		}
		s.typingTimers[userID].Reset(s.typingTimeout)
		return true
	}
	s.typing[userID] = &TypingIndicator{
		UserID:    userID,
		UserName:  userName,
		StartedAt: s.clock.Now(),
	}
	s.typingTimers[userID] = s.clock.AfterFunc(s.typingTimeout, func() {
		s.expireTyping(userID)
	})
	return true
}

func (s *Session) handleTypingStopFrame(frame wire.Frame) bool {
	if s.typingDisabled {
		return false
	}
	userID := frame.UserID
	if len(frame.Data) > 0 {
		var payload wire.TypingPayload
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			userID = payload.UserID
		}
	}
	if userID.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeTypingLocked(userID)
}

// expireTyping removes an indicator that received no renewed
// typing_start within the inactivity window.
func (s *Session) expireTyping(userID ref.UserID) {
	s.mu.Lock()
	removed := s.removeTypingLocked(userID)
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

func (s *Session) removeTypingLocked(userID ref.UserID) bool {
	_, present := s.typing[userID]
	delete(s.typing, userID)
	if timer, ok := s.typingTimers[userID]; ok {
		timer.Stop()
		delete(s.typingTimers, userID)
	}
	return present
}

func (s *Session) handlePresenceFrame(frame wire.Frame) bool {
	userID, status := frame.UserID, frame.OnlineStatus
	if len(frame.Data) > 0 {
		var payload wire.PresencePayload
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			userID, status = payload.UserID, payload.OnlineStatus
		}
	}
	if userID.IsZero() || status == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		return false
	}
	for i := range s.conversation.Participants {
		if s.conversation.Participants[i].ID == userID {
			s.conversation.Participants[i].OnlineStatus = status
			return true
		}
	}
	return false
}

// advanceStatus applies a status change if and only if it moves the
// message forward: sending, sent, delivered, read, in that order.
// Failed is reachable only from sending; nothing leaves failed.
func advanceStatus(message *Message, status MessageStatus) bool {
	if status == StatusFailed {
		if message.Status == StatusSending {
			message.Status = StatusFailed
			return true
		}
		return false
	}
	if message.Status == StatusFailed {
		return false
	}
	if statusRank(status) <= statusRank(message.Status) {
		return false
	}
	message.Status = status
	return true
}

func statusRank(status MessageStatus) int {
	switch status {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return -1
	}
}

// upsertReceipt records that userID read the message, replacing any
// earlier receipt from the same user.
func upsertReceipt(message *Message, userID ref.UserID, readAt string) {
	for i := range message.ReadBy {
		if message.ReadBy[i].UserID == userID {
			message.ReadBy[i].ReadAt = readAt
			return
		}
	}
	message.ReadBy = append(message.ReadBy, wire.ReadReceipt{UserID: userID, ReadAt: readAt})
}

func hasReceipt(message *Message, userID ref.UserID) bool {
	for _, receipt := range message.ReadBy {
		if receipt.UserID == userID {
			return true
		}
	}
	return false
}
