package agent

import (
	"strings"
	"testing"
)

func TestTruncateSerializedTinyLimits(t *testing.T) {
	payload := strings.Repeat("x", 1000)

	// the bound holds even for limits below the truncation reserve
	for _, limit := range []int{5, 20, 55, 100, 300, 499} {
		out := TruncateSerialized(payload, true, limit)
		if len(out) > limit {
			t.Errorf("limit %d: output is %d bytes", limit, len(out))
		}
	}

	// the outcome flag survives as soon as the marker fits
	for _, limit := range []int{60, 100, 300} {
		out := TruncateSerialized(payload, true, limit)
		if !strings.Contains(out, "outcome: success") {
			t.Errorf("limit %d: outcome flag lost: %q", limit, out)
		}
		out = TruncateSerialized(payload, false, limit)
		if !strings.Contains(out, "outcome: error") {
			t.Errorf("limit %d: outcome flag lost: %q", limit, out)
		}
	}
}

func TestTruncateSerializedZeroLimitPassesThrough(t *testing.T) {
	if got := TruncateSerialized("abc", true, 0); got != "abc" {
		t.Errorf("zero limit altered payload: %q", got)
	}
}
