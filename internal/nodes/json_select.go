package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmespath/go-jmespath"

	"github.com/nodeflow/nodeflow/internal/node"
)

// jsonSelectNode extracts a value from JSON text using a JMESPath
// expression. Scalar results are stringified; missing paths and search
// errors produce an empty string rather than failing the node.
type jsonSelectNode struct{}

func (n *jsonSelectNode) Schema() node.Schema {
	return node.Schema{
		ID:          "json_select",
		DisplayName: "JSON Path Select",
		Category:    "utils/json",
		Description: "Extract a value from JSON using JMESPath.",
		Inputs: []node.Port{
			{Name: "json_text", Type: node.PortJSON, Default: "", Optional: true,
				Tooltip: "JSON text to query."},
			{Name: "path", Type: node.PortString, Default: "",
				Tooltip: "JMESPath, e.g. choices[0].message.tool_calls[0].id"},
		},
		Outputs: []node.Port{
			{Name: "value", Type: node.PortString,
				Tooltip: "Extracted value, stringified. Empty if not found."},
		},
	}
}

func (n *jsonSelectNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	jsonText := in.String("json_text")
	path := in.String("path")
	if jsonText == "" || path == "" {
		return node.Outputs{"value": ""}, nil
	}

	var data any
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		return nil, fmt.Errorf("parsing json_text: %w", err)
	}

	result, err := jmespath.Search(path, data)
	if err != nil {
		return node.Outputs{"value": ""}, nil
	}

	var value string
	switch v := result.(type) {
	case string:
		value = v
	case bool:
		value = strconv.FormatBool(v)
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		// Non-scalar results (objects, arrays) collapse to an empty
		// string, matching the behavior graphs already depend on.
		// TODO: decide whether these should return their JSON encoding
		// instead; today the encoded form is computed nowhere.
		value = ""
	}

	return node.Outputs{"value": value}, nil
}
