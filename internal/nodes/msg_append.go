package nodes

import (
	"context"
	"fmt"

	"github.com/nodeflow/nodeflow/internal/chatlog"
	"github.com/nodeflow/nodeflow/internal/node"
)

// msgAppendNode appends one message to a message log. Chain several of
// these to build a conversation, then feed the result to chat_complete.
type msgAppendNode struct{}

func (n *msgAppendNode) Schema() node.Schema {
	return node.Schema{
		ID:          "msg_append",
		DisplayName: "Chat Message Append",
		Category:    "api/text",
		Description: "Append one message to an existing messages JSON array.",
		Inputs: []node.Port{
			{Name: "messages_json", Type: node.PortJSON, Default: "[]", Optional: true,
				Tooltip: "Existing messages JSON array; leave as [] to start a new one."},
			{Name: "role", Type: node.PortString, Default: "user",
				Options: []string{"user", "system", "assistant", "tool"}},
			{Name: "content", Type: node.PortString, Default: "",
				Tooltip: "Message text content."},
			{Name: "image", Type: node.PortImage, Optional: true,
				Tooltip: "Optional image data URI to include as an image_url part."},
		},
		Outputs: []node.Port{
			{Name: "messages_json_out", Type: node.PortJSON},
		},
	}
}

func (n *msgAppendNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	role := in.String("role")
	rolePort, _ := n.Schema().InputPort("role")
	if err := node.ValidateCombo(rolePort, role); err != nil {
		return nil, err
	}

	messages, err := chatlog.Decode([]byte(in.String("messages_json")))
	if err != nil {
		return nil, fmt.Errorf("messages_json: %w", err)
	}

	out, err := chatlog.Append(messages, role, in.String("content"), in.String("image"))
	if err != nil {
		return nil, err
	}

	data, err := chatlog.Encode(out)
	if err != nil {
		return nil, err
	}

	return node.Outputs{"messages_json_out": string(data)}, nil
}
