// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for the chat domain:
// conversations, messages, users, and bookings.
//
// All identifiers are immutable value types wrapping an opaque string.
// The zero value is never valid; use IsZero to check. Each type
// implements encoding.TextMarshaler and TextUnmarshaler so identifiers
// validate themselves at JSON boundaries: an inbound frame or REST
// response carrying a malformed ID fails at decode time, not deep
// inside a state mutation.
//
// The server assigns conversation, user, and booking IDs; message IDs
// are generated client-side with NewMessageID so an optimistic local
// message and its server echo share the same identity.
package ref
