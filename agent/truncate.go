package agent

import (
	"fmt"
	"unicode/utf8"
)

// truncationReserve keeps room for the marker so the rendered turn
// stays within the limit.
const truncationReserve = 500

// TruncateSerialized bounds an oversized serialized tool result. The
// kept prefix plus marker never exceeds limit, and the marker restates
// whether the call succeeded, so the outcome survives the cut whenever
// the limit has room for the marker at all.
func TruncateSerialized(serialized string, success bool, limit int) string {
	if limit <= 0 || len(serialized) <= limit {
		return serialized
	}

	outcome := "error"
	if success {
		outcome = "success"
	}
	marker := fmt.Sprintf("... [truncated, full length: %d, outcome: %s]",
		len(serialized), outcome)

	keep := limit - truncationReserve
	if keep < 0 {
		keep = limit - len(marker)
	}
	if keep < 0 {
		keep = 0
	}
	// back off to a rune boundary
	for keep > 0 && !utf8.RuneStart(serialized[keep]) {
		keep--
	}

	out := serialized[:keep] + marker
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
