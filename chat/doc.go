// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the conversation session engine: it owns the message
// list, typing indicators, participant presence, and connection state
// for one conversation, and exposes the operations UI collaborators
// call (send, typing, mark-as-read, presence, refresh).
//
// A Session hydrates itself over REST (conversation metadata and
// recent history, fetched concurrently, all-or-nothing), then hands
// traffic to the live socket. Inbound frames are applied strictly in
// arrival order. Outbound sends are optimistic: the message appears
// locally with status "sending" before the frame is written, advances
// to "sent" when the transport accepts it, and rolls to "failed" with
// the original payload retained when it does not — retry is the
// caller's decision.
//
// All state is owned by the Session and mutated only under its lock;
// collaborators read deep-copied snapshots via Snapshot or the
// OnUpdate callback and never touch state directly.
package chat
