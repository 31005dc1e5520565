package llm

import "testing"

func TestFirstChoice(t *testing.T) {
	if _, err := FirstChoice(nil); err == nil {
		t.Error("nil response must error")
	}
	if _, err := FirstChoice(&ChatResponse{}); err == nil {
		t.Error("empty choices must error")
	}

	resp := &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "hi"}}}}
	choice, err := FirstChoice(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice.Message.Content != "hi" {
		t.Errorf("content = %q", choice.Message.Content)
	}
}

func TestLastAssistantText(t *testing.T) {
	history := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "first"},
		{Role: RoleTool, Content: "tool output"},
		{Role: RoleAssistant, Content: ""},
		{Role: RoleAssistant, Content: "latest"},
		{Role: RoleTool, Content: "more tool output"},
	}
	if got := LastAssistantText(history); got != "latest" {
		t.Errorf("LastAssistantText = %q, want %q", got, "latest")
	}

	if got := LastAssistantText(nil); got != "" {
		t.Errorf("empty history: got %q", got)
	}
	if got := LastAssistantText([]Message{{Role: RoleUser, Content: "q"}}); got != "" {
		t.Errorf("no assistant turns: got %q", got)
	}
}

func TestChoiceHelpersOnDegenerateResponses(t *testing.T) {
	if ChoiceText(nil) != "" {
		t.Error("ChoiceText(nil) must be empty")
	}
	if ChoiceToolCalls(&ChatResponse{}) != nil {
		t.Error("ChoiceToolCalls on empty response must be nil")
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Code: ErrCodeRateLimit, Message: "slow down", HTTPStatus: 429, Provider: "openrouter"}
	want := "openrouter: rate_limit (status 429): slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCodeForStatus(t *testing.T) {
	cases := map[int]ErrorCode{
		401: ErrCodeAuth,
		403: ErrCodeAuth,
		404: ErrCodeUnknownModel,
		429: ErrCodeRateLimit,
		400: ErrCodeBadRequest,
		500: ErrCodeServer,
		503: ErrCodeServer,
	}
	for status, want := range cases {
		if got := CodeForStatus(status); got != want {
			t.Errorf("CodeForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}
