package team

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/virtualab/virtualab/internal/ctxkeys"
	"github.com/virtualab/virtualab/internal/metrics"
	"github.com/virtualab/virtualab/llm"
)

// Contribution is one specialist's statement in one round. A failed
// specialist still occupies its slot, with Text holding the explicit
// unavailability marker.
type Contribution struct {
	Specialist string
	Text       string
	Failed     bool
}

// Transcript is the full record of a meeting.
type Transcript struct {
	MeetingID string
	Topic     string
	Roster    []Specialist
	Rounds    [][]Contribution
	Synthesis string
}

// Options configure a meeting.
type Options struct {
	Model          string
	Rounds         int
	MaxSize        int
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Rounds <= 0 {
		o.Rounds = 1
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
}

// Meeting runs deliberation rounds over a fixed roster.
type Meeting struct {
	provider llm.Provider
	opts     Options
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewMeeting(provider llm.Provider, opts Options, logger *zap.Logger) *Meeting {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meeting{
		provider: provider,
		opts:     opts,
		logger:   logger.With(zap.String("component", "meeting")),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Meeting) WithMetrics(c *metrics.Collector) *Meeting {
	m.metrics = c
	return m
}

// Run forms the roster, executes the configured number of rounds and
// synthesizes the final answer. Within a round every specialist is
// invoked concurrently, each writing only its own pre-allocated slot;
// synthesis starts strictly after the round barrier, so it always sees
// every slot settled. One specialist failing degrades that slot to an
// unavailability marker and nothing else.
func (m *Meeting) Run(ctx context.Context, topic string) (*Transcript, error) {
	meetingID := uuid.NewString()
	ctx = ctxkeys.WithMeetingID(ctx, meetingID)
	logger := m.logger.With(zap.String("meeting_id", meetingID))

	roster, err := FormTeam(ctx, m.provider, FormOptions{
		Model:          m.opts.Model,
		MaxSize:        m.opts.MaxSize,
		Temperature:    m.opts.Temperature,
		MaxTokens:      m.opts.MaxTokens,
		RequestTimeout: m.opts.RequestTimeout,
	}, topic)
	if err != nil {
		return nil, err
	}
	logger.Debug("roster formed", zap.Int("size", len(roster)))

	tr := &Transcript{MeetingID: meetingID, Topic: topic, Roster: roster}

	for round := 0; round < m.opts.Rounds; round++ {
		contributions := make([]Contribution, len(roster))
		var wg sync.WaitGroup
		for i, sp := range roster {
			wg.Add(1)
			go func(slot int, sp Specialist) {
				defer wg.Done()
				text, err := m.ask(ctx, sp, topic, tr.Rounds)
				if err != nil {
					logger.Warn("specialist unavailable",
						zap.String("specialist", sp.Title), zap.Error(err))
					contributions[slot] = Contribution{
						Specialist: sp.Title,
						Text:       fmt.Sprintf("[%s unavailable: %v]", sp.Title, err),
						Failed:     true,
					}
					return
				}
				contributions[slot] = Contribution{Specialist: sp.Title, Text: text}
			}(i, sp)
		}
		wg.Wait()
		m.metrics.MeetingRound()
		tr.Rounds = append(tr.Rounds, contributions)
	}

	synthesis, err := m.synthesize(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	tr.Synthesis = synthesis
	return tr, nil
}

// ask is one specialist's turn. Prior rounds are replayed as context so
// later rounds can respond to earlier statements.
func (m *Meeting) ask(ctx context.Context, sp Specialist, topic string, prior [][]Contribution) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic:\n%s\n", topic)
	for n, round := range prior {
		fmt.Fprintf(&sb, "\nRound %d statements:\n", n+1)
		for _, c := range round {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Specialist, c.Text)
		}
	}
	sb.WriteString("\nGive your statement for this round.")

	req := &llm.ChatRequest{
		Model: m.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: sp.Directive},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		MaxTokens:   m.opts.MaxTokens,
		Temperature: m.opts.Temperature,
		Timeout:     m.opts.RequestTimeout,
	}
	resp, err := m.provider.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.ChoiceText(resp), nil
}

const synthesisPrompt = `You are the meeting chair. Merge the specialists' statements below into
one coherent, well-supported answer to the topic. Where specialists
disagree, weigh the arguments. A statement marked unavailable carries
no content; work with the rest.`

func (m *Meeting) synthesize(ctx context.Context, tr *Transcript) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic:\n%s\n", tr.Topic)
	for n, round := range tr.Rounds {
		fmt.Fprintf(&sb, "\nRound %d:\n", n+1)
		for _, c := range round {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Specialist, c.Text)
		}
	}

	req := &llm.ChatRequest{
		Model: m.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: synthesisPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		MaxTokens:   m.opts.MaxTokens,
		Temperature: m.opts.Temperature,
		Timeout:     m.opts.RequestTimeout,
	}
	resp, err := m.provider.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.ChoiceText(resp), nil
}
