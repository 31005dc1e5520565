package agent

import "fmt"

// DefaultSystemPrompt frames the assistant as a research helper that
// works stepwise through its tools.
const DefaultSystemPrompt = `You are a scientific research assistant. Answer the user's question
as accurately as you can. When a question needs computation or data
handling, use the execute_code tool; the interpreter keeps variables
between calls, so you can build up results step by step. When you have
enough evidence, reply with a clear final answer in plain text and stop
calling tools.`

// criticSystemPrompt is used for the tool-free review pass.
const criticSystemPrompt = `You are a rigorous scientific reviewer. You are shown a question and
a draft answer. Point out factual errors, missing considerations,
unsupported claims and gaps in reasoning. Be specific and concise. If
the answer is sound, say so plainly.`

func critiquePrompt(question, answer string) string {
	return fmt.Sprintf("Question:\n%s\n\nDraft answer:\n%s\n\nReview the draft answer.", question, answer)
}

func refinementPrompt(question, answer, critique string) string {
	return fmt.Sprintf(`Revise your answer to the question below, addressing the reviewer's
critique. Keep what was correct, fix what was not.

Question:
%s

Previous answer:
%s

Reviewer critique:
%s`, question, answer, critique)
}
