// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tourbase/chatkit/lib/ref"
)

// Identity is the local user as described by the session token.
type Identity struct {
	// UserID is the authenticated user's ID (the token subject).
	UserID ref.UserID
	// Name is the display name claim, when present.
	Name string
	// Role is the marketplace role claim ("traveler", "guide",
	// "admin"), when present.
	Role string
	// ExpiresAt is the token expiry. Zero when the token has no exp
	// claim.
	ExpiresAt time.Time
}

// Expired reports whether the token was expired at the given instant.
// A token without an expiry claim never reports expired.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// IdentityFromToken extracts the local user identity from a session
// JWT without verifying its signature. The client holds no signing
// key and the backend re-verifies the token on every request; the
// claims are read only to scope the session (user ID) and to fail
// fast on an expired token before a socket is opened.
func IdentityFromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("api: unreadable session token: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, fmt.Errorf("api: session token has no subject claim")
	}
	userID, err := ref.ParseUserID(subject)
	if err != nil {
		return Identity{}, fmt.Errorf("api: session token subject: %w", err)
	}

	identity := Identity{UserID: userID}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
		identity.ExpiresAt = expiry.Time
	}
	return identity, nil
}
