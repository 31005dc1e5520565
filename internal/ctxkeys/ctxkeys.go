// Package ctxkeys defines the context keys shared across the module.
package ctxkeys

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	meetingIDKey contextKey = "meeting_id"
)

// WithRunID attaches a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID, if any.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithMeetingID attaches a deliberation meeting ID to the context.
func WithMeetingID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, meetingIDKey, id)
}

// MeetingID extracts the meeting ID, if any.
func MeetingID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(meetingIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
