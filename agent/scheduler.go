// Package agent implements the turn scheduler: the bounded loop that
// alternates model turns with tool dispatch until the model answers in
// plain text or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/virtualab/virtualab/internal/ctxkeys"
	"github.com/virtualab/virtualab/internal/metrics"
	"github.com/virtualab/virtualab/llm"
	"github.com/virtualab/virtualab/llm/tokenizer"
	"github.com/virtualab/virtualab/tools"
)

// State is the scheduler's position in the turn cycle.
type State string

const (
	StateAwaitingModel    State = "awaiting_model"
	StateDispatchingTools State = "dispatching_tools"
	StateDone             State = "done"
)

const (
	DefaultMaxIterations = 30
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1500
	DefaultResultLimit   = 5000
)

// Options configure one scheduler. Zero values fall back to defaults.
type Options struct {
	Model          string
	MaxIterations  int
	Temperature    float64
	MaxTokens      int
	ResultLimit    int
	RequestTimeout time.Duration
	SystemPrompt   string
}

func (o *Options) applyDefaults() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.ResultLimit <= 0 {
		o.ResultLimit = DefaultResultLimit
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
}

// Scheduler drives one conversation at a time. It is single-threaded:
// tool calls within a turn are dispatched strictly in the order the
// model issued them, and Run must not be called concurrently.
type Scheduler struct {
	provider llm.Provider
	registry *tools.Registry
	counter  tokenizer.Tokenizer
	metrics  *metrics.Collector
	logger   *zap.Logger
	opts     Options

	state   State
	history []llm.Message
}

func NewScheduler(provider llm.Provider, registry *tools.Registry, opts Options, logger *zap.Logger) *Scheduler {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		provider: provider,
		registry: registry,
		logger:   logger.With(zap.String("component", "scheduler")),
		opts:     opts,
		state:    StateDone,
	}
}

// WithMetrics attaches a metrics collector.
func (s *Scheduler) WithMetrics(c *metrics.Collector) *Scheduler {
	s.metrics = c
	return s
}

// WithTokenizer attaches a token counter used for truncation telemetry.
func (s *Scheduler) WithTokenizer(t tokenizer.Tokenizer) *Scheduler {
	s.counter = t
	return s
}

// State reports the scheduler's current position in the turn cycle.
func (s *Scheduler) State() State { return s.state }

// History returns the transcript of the most recent run.
func (s *Scheduler) History() []llm.Message { return s.history }

// Run answers one question. Each call starts a fresh conversation; the
// tool layer (notably the sandbox) keeps whatever state it has.
//
// The loop ends in one of three ways: the model answers without tool
// calls (its text is returned verbatim), the transport fails (the error
// is returned, never retried), or the iteration budget is exhausted
// (the most recent assistant text is returned, or "" when there is
// none — exhaustion is not an error).
func (s *Scheduler) Run(ctx context.Context, question string) (string, error) {
	runID := uuid.NewString()
	ctx = ctxkeys.WithRunID(ctx, runID)
	logger := s.logger.With(zap.String("run_id", runID))

	s.history = []llm.Message{
		{Role: llm.RoleSystem, Content: s.opts.SystemPrompt},
		{Role: llm.RoleUser, Content: question},
	}

	for i := 0; i < s.opts.MaxIterations; i++ {
		s.state = StateAwaitingModel
		req := &llm.ChatRequest{
			Model:       s.opts.Model,
			Messages:    s.history,
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
			Tools:       s.registry.Schemas(),
			Timeout:     s.opts.RequestTimeout,
		}

		resp, err := s.provider.Completion(ctx, req)
		if err != nil {
			s.metrics.ModelCall(s.provider.Name(), false)
			s.state = StateDone
			return "", fmt.Errorf("model transport: %w", err)
		}
		s.metrics.ModelCall(s.provider.Name(), true)

		choice, err := llm.FirstChoice(resp)
		if err != nil {
			s.state = StateDone
			return "", fmt.Errorf("model transport: %w", err)
		}

		s.history = append(s.history, choice.Message)
		calls := choice.Message.ToolCalls
		if len(calls) == 0 {
			s.state = StateDone
			logger.Debug("run finished", zap.Int("iterations", i+1))
			return choice.Message.Content, nil
		}

		s.state = StateDispatchingTools
		logger.Debug("dispatching tool calls", zap.Int("iteration", i), zap.Int("count", len(calls)))
		for _, call := range calls {
			res := s.registry.Call(ctx, call)
			s.metrics.ToolCall(call.Name, res.Success)
			s.history = append(s.history, llm.Message{
				Role:       llm.RoleTool,
				Content:    s.renderResult(logger, res),
				Name:       call.Name,
				ToolCallID: call.ID,
			})
		}
	}

	s.state = StateDone
	logger.Warn("iteration budget exhausted", zap.Int("max_iterations", s.opts.MaxIterations))
	return llm.LastAssistantText(s.history), nil
}

// renderResult serializes a tool result for the history, truncating
// oversized payloads so one verbose tool cannot crowd out the context.
func (s *Scheduler) renderResult(logger *zap.Logger, res tools.Result) string {
	serialized := res.JSON()
	if len(serialized) <= s.opts.ResultLimit {
		return serialized
	}

	s.metrics.TruncatedResult()
	if s.counter != nil {
		if n, err := s.counter.CountTokens(serialized); err == nil {
			logger.Debug("tool result truncated",
				zap.String("tool", res.Name),
				zap.Int("bytes", len(serialized)),
				zap.Int("approx_tokens", n))
		}
	}
	return TruncateSerialized(serialized, res.Success, s.opts.ResultLimit)
}
