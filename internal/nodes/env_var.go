package nodes

import (
	"context"

	"github.com/nodeflow/nodeflow/internal/envfile"
	"github.com/nodeflow/nodeflow/internal/node"
)

// envVarNode resolves an environment variable through the host's
// resolver: dotenv file value, overridden by the process environment,
// with configurable fallback and strictness.
type envVarNode struct {
	resolver *envfile.Resolver
}

func newEnvVarNode(r *envfile.Resolver) *envVarNode {
	return &envVarNode{resolver: r}
}

func (n *envVarNode) Schema() node.Schema {
	return node.Schema{
		ID:          "env_var",
		DisplayName: "Environment Variable",
		Category:    "utils",
		Description: "Look up an environment variable with dotenv and fallback rules.",
		Inputs: []node.Port{
			{Name: "env_key", Type: node.PortString, Default: ""},
			{Name: "default_value", Type: node.PortString, Default: "", Optional: true,
				Tooltip: "Optional fallback value."},
			{Name: "use_fallback_when_empty", Type: node.PortBool, Default: true, Optional: true,
				Tooltip: "Apply the fallback also when the variable is set but empty."},
			{Name: "error_when_missing", Type: node.PortBool, Default: false, Optional: true,
				Tooltip: "Fail instead of falling back when the key is in neither source."},
		},
		Outputs: []node.Port{
			{Name: "value", Type: node.PortString},
		},
	}
}

func (n *envVarNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	value, err := n.resolver.Resolve(
		in.String("env_key"),
		in.String("default_value"),
		in.Bool("use_fallback_when_empty"),
		in.Bool("error_when_missing"),
	)
	if err != nil {
		return nil, err
	}
	return node.Outputs{"value": value}, nil
}
