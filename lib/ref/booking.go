// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// BookingID identifies a booking in the marketplace backend. Messages
// of kind "booking-reference" carry one so a conversation can link to
// a concrete booking; the chat client resolves it through the booking
// lookup endpoint at send time.
//
// BookingID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type BookingID struct {
	id string
}

// ParseBookingID validates and wraps a raw booking ID string.
func ParseBookingID(raw string) (BookingID, error) {
	if err := validateOpaque("booking", raw); err != nil {
		return BookingID{}, err
	}
	return BookingID{id: raw}, nil
}

// MustParseBookingID is like ParseBookingID but panics on error. Use
// in tests and static initialization where the input is known-valid.
func MustParseBookingID(raw string) BookingID {
	b, err := ParseBookingID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseBookingID(%q): %v", raw, err))
	}
	return b
}

// String returns the raw booking ID.
func (b BookingID) String() string { return b.id }

// IsZero reports whether the BookingID is the zero value.
func (b BookingID) IsZero() bool { return b.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (b BookingID) MarshalText() ([]byte, error) {
	if b.id == "" {
		return nil, nil
	}
	return []byte(b.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset booking ID).
func (b *BookingID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*b = BookingID{}
		return nil
	}
	parsed, err := ParseBookingID(string(data))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
