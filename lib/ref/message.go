// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageID identifies a message. Unlike the other identifier types,
// message IDs are generated client-side at send time: the optimistic
// local copy and the server echo must share one identity, and the
// delivery guarantee is at-least-once with client-side deduplication
// keyed on this ID.
//
// MessageID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type MessageID struct {
	id string
}

// NewMessageID generates a fresh collision-resistant message ID. The
// "msg_" prefix makes message IDs visually distinct from the other ID
// kinds in logs and wire captures.
func NewMessageID() MessageID {
	return MessageID{id: "msg_" + uuid.NewString()}
}

// ParseMessageID validates and wraps a raw message ID string. Accepts
// any opaque token: servers echo back client-generated IDs, and
// history may contain IDs minted by other client implementations.
func ParseMessageID(raw string) (MessageID, error) {
	if err := validateOpaque("message", raw); err != nil {
		return MessageID{}, err
	}
	return MessageID{id: raw}, nil
}

// MustParseMessageID is like ParseMessageID but panics on error. Use
// in tests and static initialization where the input is known-valid.
func MustParseMessageID(raw string) MessageID {
	m, err := ParseMessageID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseMessageID(%q): %v", raw, err))
	}
	return m
}

// String returns the raw message ID.
func (m MessageID) String() string { return m.id }

// IsZero reports whether the MessageID is the zero value.
func (m MessageID) IsZero() bool { return m.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (m MessageID) MarshalText() ([]byte, error) {
	if m.id == "" {
		return nil, nil
	}
	return []byte(m.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset message ID).
func (m *MessageID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = MessageID{}
		return nil
	}
	parsed, err := ParseMessageID(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
