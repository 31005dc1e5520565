package agent

import (
	"context"
	"testing"

	"github.com/virtualab/virtualab/llm"
	"github.com/virtualab/virtualab/tools"
)

func TestKeywordPolicy(t *testing.T) {
	cases := []struct {
		critique string
		want     bool
	}{
		{"The answer is missing a control group.", true},
		{"There is an ERROR in the dosage calculation.", true},
		{"You should cite the original study.", true},
		{"Several gaps remain in the reasoning.", true},
		{"The answer is correct and complete.", false},
		{"Well reasoned and fully supported.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := KeywordPolicy(tc.critique); got != tc.want {
			t.Errorf("KeywordPolicy(%q) = %v, want %v", tc.critique, got, tc.want)
		}
	}
}

func TestRunWithCriticRefines(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResp("Plain first draft."),
		textResp("The draft is missing the dosage units."),
		textResp("Revised answer with units."),
	}}
	s := NewScheduler(provider, tools.NewRegistry(nil), Options{}, nil)
	critic := NewCritic(provider, CriticOptions{}, nil)

	review, err := s.RunWithCritic(context.Background(), "q", critic)
	if err != nil {
		t.Fatalf("RunWithCritic failed: %v", err)
	}
	if review.Initial != "Plain first draft." {
		t.Errorf("Initial = %q", review.Initial)
	}
	if review.Critique != "The draft is missing the dosage units." {
		t.Errorf("Critique = %q", review.Critique)
	}
	if review.Final != "Revised answer with units." {
		t.Errorf("Final = %q", review.Final)
	}
	if !review.Refined {
		t.Error("Refined = false, want true")
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 model calls (loop, critique, refined loop), got %d", provider.calls)
	}

	// the critique request must offer no tools
	critiqueReq := provider.requests[1]
	if len(critiqueReq.Tools) != 0 {
		t.Errorf("critique request offered %d tools", len(critiqueReq.Tools))
	}
}

func TestRunWithCriticSkipsRefinement(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResp("Complete answer."),
		textResp("Accurate and fully supported."),
	}}
	s := NewScheduler(provider, tools.NewRegistry(nil), Options{}, nil)
	critic := NewCritic(provider, CriticOptions{}, nil)

	review, err := s.RunWithCritic(context.Background(), "q", critic)
	if err != nil {
		t.Fatalf("RunWithCritic failed: %v", err)
	}
	if review.Final != review.Initial {
		t.Errorf("Final = %q, want the initial answer", review.Final)
	}
	if review.Refined {
		t.Error("Refined = true, want false")
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", provider.calls)
	}
}

func TestRunWithCriticMaxOneRefinementRound(t *testing.T) {
	// every critique complains; the loop must still refine only once
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResp("Draft."),
		textResp("Still missing evidence."),
		textResp("Refined."),
	}}
	s := NewScheduler(provider, tools.NewRegistry(nil), Options{}, nil)
	critic := NewCritic(provider, CriticOptions{}, nil)

	review, err := s.RunWithCritic(context.Background(), "q", critic)
	if err != nil {
		t.Fatalf("RunWithCritic failed: %v", err)
	}
	if review.Final != "Refined." {
		t.Errorf("Final = %q", review.Final)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 model calls total, got %d", provider.calls)
	}
}

func TestRunWithCriticTransportFailureKeepsInitial(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.ChatResponse{textResp("Initial.")},
		errAt: map[int]error{
			1: &llm.Error{Code: llm.ErrCodeServer, HTTPStatus: 500, Provider: "scripted"},
		},
	}
	s := NewScheduler(provider, tools.NewRegistry(nil), Options{}, nil)
	critic := NewCritic(provider, CriticOptions{}, nil)

	review, err := s.RunWithCritic(context.Background(), "q", critic)
	if err != nil {
		t.Fatalf("critic failure must not fail the run: %v", err)
	}
	if review.Final != "Initial." || review.Refined {
		t.Errorf("review = %+v, want initial answer kept", review)
	}
}

func TestCustomPolicy(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResp("Answer."),
		textResp("missing missing missing"),
	}}
	s := NewScheduler(provider, tools.NewRegistry(nil), Options{}, nil)
	critic := NewCritic(provider, CriticOptions{}, nil).
		WithPolicy(func(string) bool { return false })

	review, err := s.RunWithCritic(context.Background(), "q", critic)
	if err != nil {
		t.Fatalf("RunWithCritic failed: %v", err)
	}
	if review.Refined {
		t.Error("custom policy ignored")
	}
}
