// Package team implements multi-agent deliberation: a coordinator
// forms a small roster of specialists, each round fans their prompts
// out concurrently, and a synthesis pass merges the contributions.
package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/virtualab/virtualab/llm"
)

// DefaultMaxSize bounds the roster. Deliberation quality drops and
// cost rises quickly past a handful of voices.
const DefaultMaxSize = 3

// Specialist is one roster entry, fixed for the whole meeting.
type Specialist struct {
	Title     string `json:"title"`
	Expertise string `json:"expertise"`
	Directive string `json:"directive"`
}

// FormOptions configure roster formation.
type FormOptions struct {
	Model          string
	MaxSize        int
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
}

const rosterPrompt = `You assemble a small team of scientific specialists to work on a topic.
Reply with ONLY a JSON array of at most %d objects, each with fields
"title", "expertise" and "directive" (the directive is the system
prompt that specialist will work under). No prose outside the array.`

// FormTeam asks the coordinator model for a roster in a single call.
// The reply is parsed leniently; an unparsable reply falls back to a
// fixed default roster rather than failing the meeting. Oversized
// rosters are clamped to MaxSize.
func FormTeam(ctx context.Context, provider llm.Provider, opts FormOptions, topic string) ([]Specialist, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	req := &llm.ChatRequest{
		Model: opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(rosterPrompt, opts.MaxSize)},
			{Role: llm.RoleUser, Content: "Topic:\n" + topic},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Timeout:     opts.RequestTimeout,
	}
	resp, err := provider.Completion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("roster formation: %w", err)
	}

	roster := parseRoster(llm.ChoiceText(resp))
	if len(roster) == 0 {
		roster = defaultRoster()
	}
	if len(roster) > opts.MaxSize {
		roster = roster[:opts.MaxSize]
	}
	return roster, nil
}

// parseRoster extracts the first JSON array from the reply, tolerating
// prose or code fences around it.
func parseRoster(reply string) []Specialist {
	start := strings.IndexByte(reply, '[')
	end := strings.LastIndexByte(reply, ']')
	if start < 0 || end <= start {
		return nil
	}
	var roster []Specialist
	if err := json.Unmarshal([]byte(reply[start:end+1]), &roster); err != nil {
		return nil
	}
	out := roster[:0]
	for _, s := range roster {
		if s.Title != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultRoster() []Specialist {
	return []Specialist{
		{
			Title:     "Domain Scientist",
			Expertise: "subject-matter analysis",
			Directive: "You are a domain scientist. Analyze the topic from first principles and cite the evidence behind each claim.",
		},
		{
			Title:     "Methodologist",
			Expertise: "study design and statistics",
			Directive: "You are a methodologist. Assess how the question should be investigated and what would make an answer trustworthy.",
		},
		{
			Title:     "Skeptic",
			Expertise: "critical review",
			Directive: "You are a professional skeptic. Probe for weak assumptions, confounders and alternative explanations.",
		},
	}
}
