// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload runs attachment uploads for outgoing messages and
// tracks their progress.
//
// A batch uploads its files concurrently and tolerates partial
// failure: the send proceeds with whatever uploaded successfully, in
// the original file order. Each file gets a progress entry that UIs
// can poll; terminal entries (completed or failed) linger briefly so a
// progress bar can show its final state, then are pruned.
package upload
