// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the chat socket protocol: the JSON frames
// exchanged with the conversation endpoint, in both directions.
//
// Every frame is a single JSON object with a "type" field. Outbound
// frames (client to server) are concrete structs built with the New*
// constructors. Inbound frames (server to client) decode into the
// generic Frame envelope first — the frame type is not trusted until
// the dispatcher has looked at it, and unknown types must decode
// without error so a newer server cannot crash an older client.
//
// Attachment is defined here rather than in the session package
// because it crosses the wire verbatim: the upload tracker produces
// it, send_message frames carry it, and inbound message frames return
// it, all with the same JSON shape.
package wire
