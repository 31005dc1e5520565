package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtualab/virtualab/llm"
)

// RefinementPolicy decides whether a critique warrants a refinement
// pass. Swap it to change the trigger without touching the loop.
type RefinementPolicy func(critique string) bool

// refinementKeywords drive the default lexical policy. The check is a
// case-insensitive substring scan, so an affirming critique that merely
// contains a keyword ("should be fine") still triggers a pass; that
// costs one extra loop, never a wrong answer.
var refinementKeywords = []string{
	"error",
	"missing",
	"incorrect",
	"should",
	"could be improved",
	"incomplete",
	"wrong",
	"better",
	"lacks",
	"gap",
	"concern",
	"problem",
}

// KeywordPolicy is the default RefinementPolicy.
func KeywordPolicy(critique string) bool {
	lower := strings.ToLower(critique)
	for _, kw := range refinementKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CriticOptions configure the review pass. The critic runs cooler than
// the main loop.
type CriticOptions struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
}

func (o *CriticOptions) applyDefaults() {
	if o.Temperature == 0 {
		o.Temperature = 0.3
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
}

// Critic reviews a finished answer in a single tool-free model call.
type Critic struct {
	provider llm.Provider
	opts     CriticOptions
	policy   RefinementPolicy
	logger   *zap.Logger
}

func NewCritic(provider llm.Provider, opts CriticOptions, logger *zap.Logger) *Critic {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Critic{
		provider: provider,
		opts:     opts,
		policy:   KeywordPolicy,
		logger:   logger.With(zap.String("component", "critic")),
	}
}

// WithPolicy replaces the refinement policy.
func (c *Critic) WithPolicy(p RefinementPolicy) *Critic {
	if p != nil {
		c.policy = p
	}
	return c
}

// Critique reviews an answer. No tool schemas are offered; the model
// can only talk. The critique text is returned verbatim.
func (c *Critic) Critique(ctx context.Context, question, answer string) (string, error) {
	req := &llm.ChatRequest{
		Model: c.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: criticSystemPrompt},
			{Role: llm.RoleUser, Content: critiquePrompt(question, answer)},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		Timeout:     c.opts.RequestTimeout,
	}
	resp, err := c.provider.Completion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("critic transport: %w", err)
	}
	return llm.ChoiceText(resp), nil
}

// Review is the outcome of a critic-refine run.
type Review struct {
	Initial  string
	Critique string
	Final    string
	Refined  bool
}

// RunWithCritic answers the question, has the critic review the answer,
// and runs at most one refinement pass when the policy asks for it.
// A critic transport failure falls back to the initial answer rather
// than failing the whole run.
func (s *Scheduler) RunWithCritic(ctx context.Context, question string, critic *Critic) (Review, error) {
	initial, err := s.Run(ctx, question)
	if err != nil {
		return Review{}, err
	}
	review := Review{Initial: initial, Final: initial}

	critique, err := critic.Critique(ctx, question, initial)
	if err != nil {
		critic.logger.Warn("critique pass failed, keeping initial answer", zap.Error(err))
		return review, nil
	}
	review.Critique = critique

	if !critic.policy(critique) {
		return review, nil
	}

	s.metrics.RefinementRound()
	critic.logger.Debug("critique triggered refinement")
	final, err := s.Run(ctx, refinementPrompt(question, initial, critique))
	if err != nil {
		return Review{}, err
	}
	review.Final = final
	review.Refined = true
	return review, nil
}
