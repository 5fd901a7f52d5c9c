package nodes

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/nodeflow/nodeflow/internal/node"
)

// evalExprNode evaluates an expression with the incoming value bound to
// `x`. The expression language is expr-lang: no I/O, no process access,
// no arbitrary code — just operators, builtins, and the bound variable.
// Compile and runtime errors fail the node.
type evalExprNode struct{}

func (n *evalExprNode) Schema() node.Schema {
	return node.Schema{
		ID:          "eval_expr",
		DisplayName: "Eval Expression",
		Category:    "utils",
		Description: "Evaluate a sandboxed expression with the incoming value available as x.",
		Inputs: []node.Port{
			{Name: "expression", Type: node.PortString, Default: "x",
				Tooltip: "Expression; x refers to the input value."},
			{Name: "value", Type: node.PortAny, Optional: true,
				Tooltip: "Any input, accessible as x inside the expression."},
		},
		Outputs: []node.Port{
			{Name: "result", Type: node.PortAny},
		},
	}
}

func (n *evalExprNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	src := in.String("expression")
	if src == "" {
		return nil, fmt.Errorf("expression is required")
	}

	env := map[string]any{"x": in["value"]}

	// The env holds exactly x, so a typoed variable name is a compile
	// error rather than a silent nil.
	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("compiling expression: %w", err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluating expression: %w", err)
	}

	return node.Outputs{"result": result}, nil
}
