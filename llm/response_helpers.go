package llm

import "fmt"

// FirstChoice safely returns the first choice from a ChatResponse.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse")
	}
	return resp.Choices[0], nil
}

// ChoiceText returns the assistant text of the first choice, or "".
func ChoiceText(resp *ChatResponse) string {
	choice, err := FirstChoice(resp)
	if err != nil {
		return ""
	}
	return choice.Message.Content
}

// ChoiceToolCalls returns the tool calls of the first choice, in the
// order the model issued them.
func ChoiceToolCalls(resp *ChatResponse) []ToolCall {
	choice, err := FirstChoice(resp)
	if err != nil {
		return nil
	}
	return choice.Message.ToolCalls
}

// LastAssistantText scans the history from the end and returns the most
// recent non-empty assistant text, or "" when there is none.
func LastAssistantText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
