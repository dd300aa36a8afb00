// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the REST client for the marketplace chat endpoints:
// conversation bootstrap, message history, read-receipt persistence,
// file upload, and booking lookup. The live socket protocol lives in
// the transport and wire packages; this package covers everything that
// is plain request/response.
//
// All successful responses arrive in a {"data": ...} envelope. Errors
// are returned as *APIError with the backend error code and HTTP
// status; use errors.As to inspect them.
//
// The client authenticates with an opaque bearer token. The token is
// a JWT minted by the auth service — IdentityFromToken reads its
// claims without verifying the signature (the client has no key and
// the server re-verifies every request) so callers can learn the
// local user ID and fail fast on expired tokens before opening a
// socket.
package api
