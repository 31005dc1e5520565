package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
// Arguments is the raw JSON object the model produced; it is decoded
// at the registry boundary, not here.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one turn of the conversation history.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSchema describes a callable tool to the model.
// Parameters is a JSON Schema object.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Tools       []ToolSchema  `json:"tools,omitempty"`
	Timeout     time.Duration `json:"-"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token accounting as returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a completed model turn.
type ChatResponse struct {
	ID       string       `json:"id"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Choices  []ChatChoice `json:"choices"`
	Usage    Usage        `json:"usage"`
}

// Provider is the model transport. Completion performs one blocking
// request bounded by ctx and req.Timeout. Transport failures come back
// as *Error; callers must treat them as fatal for the current run.
type Provider interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Name() string
	HealthCheck(ctx context.Context) error
}

// ErrorCode classifies transport failures.
type ErrorCode string

const (
	ErrCodeAuth         ErrorCode = "auth"
	ErrCodeRateLimit    ErrorCode = "rate_limit"
	ErrCodeBadRequest   ErrorCode = "bad_request"
	ErrCodeServer       ErrorCode = "server"
	ErrCodeTimeout      ErrorCode = "timeout"
	ErrCodeNetwork      ErrorCode = "network"
	ErrCodeMalformed    ErrorCode = "malformed_response"
	ErrCodeUnknownModel ErrorCode = "unknown_model"
)

// Error is a transport-level failure. It carries the HTTP status and a
// bounded slice of the response body so operators can see what the
// upstream actually said.
type Error struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Body       string
	Provider   string
	Retryable  bool
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// CodeForStatus maps an HTTP status to an ErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuth
	case status == 404:
		return ErrCodeUnknownModel
	case status == 429:
		return ErrCodeRateLimit
	case status >= 500:
		return ErrCodeServer
	case status >= 400:
		return ErrCodeBadRequest
	default:
		return ErrCodeNetwork
	}
}
