// Package anthropic implements the model transport over the Anthropic
// messages API. The API differs from the OpenAI shape in a few ways:
// authentication uses an x-api-key header, the system prompt travels in
// its own field, and tool traffic is expressed as tool_use/tool_result
// content blocks.
package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096
	apiVersion       = "2023-06-01"
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
		logger: logger.With(zap.String("provider", "anthropic")),
	}
}

func (p *Provider) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      *anthropicUsage    `json:"usage,omitempty"`
}

type anthropicErrorResp struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) headers(req *http.Request) {
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// convertMessages maps the unified history to the Anthropic shape:
// the system turn moves to the dedicated field, tool turns become
// user messages holding a tool_result block, assistant tool calls
// become tool_use blocks.
func convertMessages(msgs []llm.Message) (string, []anthropicMessage) {
	var system string
	var out []anthropicMessage

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		default:
			am := anthropicMessage{Role: string(m.Role)}
			if m.Content != "" {
				am.Content = append(am.Content, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				am.Content = append(am.Content, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			if len(am.Content) > 0 {
				out = append(out, am)
			}
		}
	}
	return system, out
}

func convertTools(schemas []llm.ToolSchema) []anthropicTool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, anthropicTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.Parameters,
		})
	}
	return out
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	system, messages := convertMessages(req.Messages)
	body := anthropicRequest{
		Model:       chooseModel(req.Model, p.cfg.Model),
		Messages:    messages,
		System:      system,
		MaxTokens:   chooseMaxTokens(req.MaxTokens),
		Temperature: req.Temperature,
		Tools:       convertTools(req.Tools),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeBadRequest, Message: err.Error(), Provider: p.Name()}
	}
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))
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

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeMalformed, Message: err.Error(), Provider: p.Name()}
	}
	return toChatResponse(ar, p.Name()), nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/models", strings.TrimRight(p.cfg.BaseURL, "/"))
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

func toChatResponse(ar anthropicResponse, provider string) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, c := range ar.Content {
		switch c.Type {
		case "text":
			msg.Content += c.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        c.ID,
				Name:      c.Name,
				Arguments: c.Input,
			})
		}
	}

	resp := &llm.ChatResponse{
		ID:       ar.ID,
		Provider: provider,
		Model:    ar.Model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: ar.StopReason,
		}},
	}
	if ar.Usage != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		}
	}
	return resp
}

// mapError drains the body (bounded) and builds the transport error
// the scheduler treats as fatal.
func mapError(status int, body io.Reader, provider string) *llm.Error {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	msg := string(data)
	var er anthropicErrorResp
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		msg = fmt.Sprintf("%s (type: %s)", er.Error.Message, er.Error.Type)
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

func chooseMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	// the messages API requires max_tokens
	return defaultMaxTokens
}
