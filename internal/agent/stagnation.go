// File: internal/agent/stagnation.go
package agent

import "github.com/xkilldash9x/axpilot/api/schemas"

// Stagnated reports whether the trailing window of history shows at most
// threshold distinct action signatures. Histories shorter than the window
// never stagnate.
func Stagnated(history []schemas.HistoryEntry, window, threshold int) bool {
	if window <= 0 || len(history) < window {
		return false
	}
	seen := make(map[string]struct{}, window)
	for _, h := range history[len(history)-window:] {
		seen[h.Action.Signature()] = struct{}{}
	}
	return len(seen) <= threshold
}
