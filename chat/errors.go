// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "fmt"

// NotConnectedError is returned by operations that require a live
// socket when the session is in any other state. No state is mutated
// before the check, so the caller can simply try again once connected.
type NotConnectedError struct {
	// State is the session state at the time of the call.
	State ConnState
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("chat: not connected (session state %q)", e.State)
}

// SendError is returned when the transport rejects an outbound message
// frame. The message stays in local state with status failed and its
// outbound payload retained for retry.
type SendError struct {
	// MessageID identifies the failed message in local state.
	MessageID string
	// Reason describes why the write did not happen.
	Reason string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("chat: send of message %s failed: %s", e.MessageID, e.Reason)
}
