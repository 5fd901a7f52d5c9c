// Package nodes provides the built-in node set:
//
//   - chat_complete: call a chat completions endpoint and normalize the
//     response (text, tool calls, chained message log)
//   - msg_append:    append one message to a message log
//   - env_var:       resolve an environment variable with fallback rules
//   - eval_expr:     evaluate a sandboxed expression over an input value
//   - json_select:   query JSON text with a JMESPath expression
//   - video_size:    pick a width/height pair from a resolution table
//
// Each node is a thin adapter over the corresponding internal package;
// none of them holds state between executions.
package nodes

import (
	"fmt"

	"github.com/nodeflow/nodeflow/internal/chat"
	"github.com/nodeflow/nodeflow/internal/envfile"
	"github.com/nodeflow/nodeflow/internal/node"
)

// Deps carries the collaborators the built-in nodes need.
type Deps struct {
	Chat *chat.Client      // Transport for chat_complete.
	Env  *envfile.Resolver // Resolution source for env_var.

	// Host defaults, used when a graph leaves the inputs blank.
	APIBase        string
	Model          string
	TimeoutSeconds float64
}

// RegisterBuiltins registers the built-in node set on the registry.
func RegisterBuiltins(r *node.Registry, deps Deps) error {
	builtins := []node.Node{
		newChatCompleteNode(deps),
		&msgAppendNode{},
		newEnvVarNode(deps.Env),
		&evalExprNode{},
		&jsonSelectNode{},
		&videoSizeNode{},
	}

	for _, n := range builtins {
		if err := r.Register(n); err != nil {
			return fmt.Errorf("registering builtin nodes: %w", err)
		}
	}
	return nil
}
