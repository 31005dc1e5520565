package team

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualab/virtualab/llm"
)

const rosterJSON = `[
  {"title": "Geneticist", "expertise": "genomics", "directive": "You are the Geneticist."},
  {"title": "Statistician", "expertise": "statistics", "directive": "You are the Statistician."},
  {"title": "Clinician", "expertise": "clinical practice", "directive": "You are the Clinician."}
]`

// meetingProvider routes on the system prompt: the roster request gets
// the scripted roster, specialists answer with their own title, the
// chair synthesizes. Specialists listed in failing error out.
type meetingProvider struct {
	mu      sync.Mutex
	order   []string
	failing map[string]bool
}

func (p *meetingProvider) record(step string) {
	p.mu.Lock()
	p.order = append(p.order, step)
	p.mu.Unlock()
}

func (p *meetingProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	system := req.Messages[0].Content
	switch {
	case strings.Contains(system, "assemble a small team"):
		p.record("roster")
		return textResp(rosterJSON), nil
	case strings.Contains(system, "meeting chair"):
		p.record("synthesis")
		return textResp("merged view"), nil
	default:
		title := strings.TrimSuffix(strings.TrimPrefix(system, "You are the "), ".")
		p.record(title)
		if p.failing[title] {
			return nil, &llm.Error{Code: llm.ErrCodeServer, HTTPStatus: 503, Message: "down", Provider: "fake"}
		}
		return textResp(title + " statement"), nil
	}
}

func (p *meetingProvider) Name() string                      { return "fake" }
func (p *meetingProvider) HealthCheck(context.Context) error { return nil }

func textResp(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
	}
}

func TestMeetingRun(t *testing.T) {
	provider := &meetingProvider{}
	m := NewMeeting(provider, Options{}, nil)

	tr, err := m.Run(context.Background(), "does gene X drive phenotype Y?")
	require.NoError(t, err)

	require.Len(t, tr.Roster, 3)
	require.Len(t, tr.Rounds, 1)
	round := tr.Rounds[0]
	require.Len(t, round, 3)

	// slots follow roster order regardless of goroutine scheduling
	assert.Equal(t, "Geneticist", round[0].Specialist)
	assert.Equal(t, "Statistician", round[1].Specialist)
	assert.Equal(t, "Clinician", round[2].Specialist)
	for _, c := range round {
		assert.False(t, c.Failed)
		assert.Equal(t, c.Specialist+" statement", c.Text)
	}
	assert.Equal(t, "merged view", tr.Synthesis)
	assert.NotEmpty(t, tr.MeetingID)
}

func TestMeetingFailedSpecialistBecomesMarker(t *testing.T) {
	provider := &meetingProvider{failing: map[string]bool{"Statistician": true}}
	m := NewMeeting(provider, Options{}, nil)

	tr, err := m.Run(context.Background(), "topic")
	require.NoError(t, err, "one failed specialist must not fail the meeting")

	round := tr.Rounds[0]
	require.Len(t, round, 3)
	assert.False(t, round[0].Failed)
	assert.False(t, round[2].Failed)

	assert.True(t, round[1].Failed)
	assert.Contains(t, round[1].Text, "[Statistician unavailable:")

	// synthesis still ran, strictly after every slot settled
	assert.Equal(t, "merged view", tr.Synthesis)
	require.NotEmpty(t, provider.order)
	assert.Equal(t, "synthesis", provider.order[len(provider.order)-1])
}

func TestMeetingMultipleRoundsSeePriorStatements(t *testing.T) {
	provider := &meetingProvider{}
	m := NewMeeting(provider, Options{Rounds: 2}, nil)

	tr, err := m.Run(context.Background(), "topic")
	require.NoError(t, err)
	require.Len(t, tr.Rounds, 2)

	// round barrier: all of round 1 recorded before any of round 2
	var steps []string
	for _, s := range provider.order {
		if s != "roster" && s != "synthesis" {
			steps = append(steps, s)
		}
	}
	require.Len(t, steps, 6)
}

func TestParseRoster(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		roster := parseRoster("Here you go:\n```json\n" + rosterJSON + "\n```\nGood luck!")
		require.Len(t, roster, 3)
		assert.Equal(t, "Geneticist", roster[0].Title)
	})

	t.Run("garbage falls back", func(t *testing.T) {
		assert.Nil(t, parseRoster("I cannot form a team."))
		assert.Nil(t, parseRoster("[not json"))
	})

	t.Run("entries without titles dropped", func(t *testing.T) {
		roster := parseRoster(`[{"title":"A"},{"expertise":"untitled"}]`)
		require.Len(t, roster, 1)
	})
}

func TestFormTeamClampsRoster(t *testing.T) {
	provider := &meetingProvider{}
	roster, err := FormTeam(context.Background(), provider, FormOptions{MaxSize: 2}, "topic")
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestFormTeamFallbackRoster(t *testing.T) {
	provider := &fallbackProvider{}
	roster, err := FormTeam(context.Background(), provider, FormOptions{}, "topic")
	require.NoError(t, err)
	require.Len(t, roster, 3, "unparsable reply must yield the default roster")
	assert.Equal(t, "Domain Scientist", roster[0].Title)
}

func TestFormTeamTransportErrorIsFatal(t *testing.T) {
	provider := &fallbackProvider{err: errors.New("network down")}
	_, err := FormTeam(context.Background(), provider, FormOptions{}, "topic")
	require.Error(t, err)
}

type fallbackProvider struct{ err error }

func (p *fallbackProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return textResp("no json here"), nil
}
func (p *fallbackProvider) Name() string                      { return "fallback" }
func (p *fallbackProvider) HealthCheck(context.Context) error { return nil }
