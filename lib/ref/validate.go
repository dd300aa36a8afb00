// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// validateOpaque checks the shared constraints for server-assigned
// identifiers: non-empty, no whitespace, no control characters. The
// backend treats IDs as opaque tokens, so this is deliberately loose —
// the goal is catching field mix-ups (an ID slot carrying a display
// name or a JSON blob), not enforcing a format the server never
// promised.
func validateOpaque(kind, raw string) error {
	if raw == "" {
		return fmt.Errorf("empty %s ID", kind)
	}
	for _, r := range raw {
		if r == ' ' || r < 0x21 {
			return fmt.Errorf("%s ID contains whitespace or control characters: %q", kind, raw)
		}
	}
	return nil
}
