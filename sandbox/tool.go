package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/virtualab/virtualab/llm"
	"github.com/virtualab/virtualab/tools"
)

// ExecuteCodeTool adapts an Interpreter into the execute_code tool.
// A throwing snippet surfaces as a failure result carrying the
// exception text; stdout and the completion value ride along on success.
func ExecuteCodeTool(interp *Interpreter) tools.Tool {
	return tools.Tool{
		Schema: toolSchema(),
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			code, ok := args["code"].(string)
			if !ok {
				return nil, fmt.Errorf("code must be a string")
			}
			res := interp.Execute(ctx, code)
			if res.Failed() {
				return nil, errors.New(res.Err)
			}
			out := map[string]any{}
			if res.Value != "" {
				out["value"] = res.Value
			}
			if res.Stdout != "" {
				out["stdout"] = res.Stdout
			}
			return out, nil
		},
	}
}

func toolSchema() (s llm.ToolSchema) {
	s.Name = "execute_code"
	s.Description = "Execute a JavaScript snippet in a persistent interpreter. " +
		"Variables and functions defined in earlier calls remain available. " +
		"Use print() or console.log() to emit output."
	s.Parameters = tools.ObjectSchema(map[string]any{
		"code": map[string]any{
			"type":        "string",
			"description": "JavaScript source to execute",
		},
	}, "code")
	return s
}
