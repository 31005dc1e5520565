package agent

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestTruncateSerializedProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.StringN(0, 50000, -1).Draw(t, "payload")
		success := rapid.Bool().Draw(t, "success")
		limit := rapid.IntRange(64, 20000).Draw(t, "limit")

		out := TruncateSerialized(payload, success, limit)

		if len(payload) <= limit {
			if out != payload {
				t.Fatalf("short payload altered")
			}
			return
		}

		if len(out) > limit {
			t.Fatalf("output %d bytes exceeds limit %d", len(out), limit)
		}
		if !strings.Contains(out, "[truncated") {
			t.Fatalf("marker missing")
		}
		wantFlag := "outcome: error"
		if success {
			wantFlag = "outcome: success"
		}
		if !strings.Contains(out, wantFlag) {
			t.Fatalf("outcome flag lost, want %q", wantFlag)
		}
		// the kept prefix is a prefix of the original
		cut := strings.Index(out, "... [truncated")
		if cut < 0 {
			t.Fatalf("marker not found")
		}
		if !strings.HasPrefix(payload, out[:cut]) {
			t.Fatalf("kept prefix diverges from payload")
		}
	})
}
