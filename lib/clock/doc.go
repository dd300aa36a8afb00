// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts timer scheduling so every time-driven
// behavior in the chat client is deterministically testable.
//
// The protocol engine is full of timers: the 30-second heartbeat
// ticker, exponential reconnect backoff, the 3-second typing
// inactivity window, and the 5-second upload-progress prune delay.
// Production code injects Real(); tests inject Fake(initial) and step
// time explicitly with Advance, so a backoff test covering five
// reconnect attempts finishes in microseconds instead of minutes.
//
// Any production function that would call time.Now, time.After,
// time.AfterFunc, or time.NewTicker takes a Clock instead.
package clock
