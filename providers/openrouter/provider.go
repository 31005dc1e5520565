// Package openrouter implements the model transport over OpenRouter's
// OpenAI-compatible chat/completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtualab/virtualab/llm"
	"github.com/virtualab/virtualab/providers"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "anthropic/claude-sonnet-4"
	defaultTimeout = 120 * time.Second
)

type Provider struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg providers.Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "openrouter")),
	}
}

func (p *Provider) Name() string { return "openrouter" }

type oaFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function oaFunctionCall `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	Name       string       `json:"name,omitempty"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

type oaRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	Tools       []oaTool    `json:"tools,omitempty"`
}

type oaResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int       `json:"index"`
		Message      oaMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type oaErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (p *Provider) headers(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/virtualab/virtualab")
	req.Header.Set("X-Title", "virtualab")
}

func convertMessages(msgs []llm.Message) []oaMessage {
	out := make([]oaMessage, 0, len(msgs))
	for _, m := range msgs {
		om := oaMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, oaToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: oaFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func convertTools(schemas []llm.ToolSchema) []oaTool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]oaTool, 0, len(schemas))
	for _, s := range schemas {
		var t oaTool
		t.Type = "function"
		t.Function.Name = s.Name
		t.Function.Description = s.Description
		t.Function.Parameters = s.Parameters
		out = append(out, t)
	}
	return out
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := oaRequest{
		Model:       chooseModel(req.Model, p.cfg.Model),
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Tools:       convertTools(req.Tools),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeBadRequest, Message: err.Error(), Provider: p.Name()}
	}
	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeBadRequest, Message: err.Error(), Provider: p.Name()}
	}
	p.headers(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		code := llm.ErrCodeNetwork
		if ctx.Err() != nil {
			code = llm.ErrCodeTimeout
		}
		return nil, &llm.Error{Code: code, Message: err.Error(), Provider: p.Name(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapError(resp.StatusCode, resp.Body, p.Name())
	}

	var or oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeMalformed, Message: err.Error(), Provider: p.Name()}
	}
	return toChatResponse(or, p.Name()), nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	p.headers(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mapError(resp.StatusCode, resp.Body, p.Name())
	}
	return nil
}

func toChatResponse(or oaResponse, provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       or.ID,
		Provider: provider,
		Model:    or.Model,
		Usage: llm.Usage{
			PromptTokens:     or.Usage.PromptTokens,
			CompletionTokens: or.Usage.CompletionTokens,
			TotalTokens:      or.Usage.TotalTokens,
		},
	}
	for _, c := range or.Choices {
		msg := llm.Message{
			Role:    llm.Role(c.Message.Role),
			Content: c.Message.Content,
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		resp.Choices = append(resp.Choices, llm.ChatChoice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: c.FinishReason,
		})
	}
	return resp
}

func mapError(status int, body io.Reader, provider string) *llm.Error {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	msg := string(data)
	var er oaErrorResp
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	return &llm.Error{
		Code:       llm.CodeForStatus(status),
		Message:    msg,
		HTTPStatus: status,
		Body:       string(data),
		Provider:   provider,
		Retryable:  status == 429 || status >= 500,
	}
}

func chooseModel(requested, configured string) string {
	if requested != "" {
		return requested
	}
	return configured
}
