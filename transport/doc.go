// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport maintains the websocket connection to the chat
// backend: dialing, exponential-backoff reconnection, a 30-second
// application-level heartbeat, and an event-handler surface for the
// layers above.
//
// The Socket is deliberately dumb about the protocol. It delivers raw
// inbound frames through the message event and leaves decoding to the
// wire package; the one frame it understands is the heartbeat pong,
// which it swallows. Reconnection is automatic after an abnormal
// closure and stops permanently after Close or once the attempt budget
// is spent, at which point the max-attempts event fires and the caller
// decides what to do.
package transport
