// Package node defines the plugin node contract and the registry the
// graph runner executes against.
//
// A node is a small, independent unit: it declares typed input and output
// ports and an Execute function. Nodes hold no state between runs — all
// data flows through Inputs/Outputs — so a single registered instance
// serves concurrent graph runs.
package node

import (
	"context"
	"fmt"
	"strconv"
)

// PortType is the closed set of value types a port can declare.
type PortType string

const (
	PortString PortType = "string"
	PortFloat  PortType = "float"
	PortInt    PortType = "int"
	PortBool   PortType = "bool"
	PortJSON   PortType = "json"  // JSON text carried as a string.
	PortImage  PortType = "image" // File path or data URI carried as a string.
	PortAny    PortType = "any"
)

// Port declares one input or output of a node.
type Port struct {
	Name     string
	Type     PortType
	Default  any      // Applied when the input is absent; nil means none.
	Optional bool     // Optional inputs may be absent with no default.
	Options  []string // For combo-style string inputs: the allowed values.
	Tooltip  string
}

// Schema describes a node type for hosts and for graph validation.
type Schema struct {
	ID          string
	DisplayName string
	Category    string
	Description string
	Inputs      []Port
	Outputs     []Port
}

// InputPort returns the declared input port with the given name.
func (s Schema) InputPort(name string) (Port, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// OutputPort returns the declared output port with the given name.
func (s Schema) OutputPort(name string) (Port, bool) {
	for _, p := range s.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// ApplyDefaults returns a copy of in with declared defaults filled in for
// absent inputs. The original map is not modified.
func (s Schema) ApplyDefaults(in Inputs) Inputs {
	out := make(Inputs, len(in)+len(s.Inputs))
	for k, v := range in {
		out[k] = v
	}
	for _, p := range s.Inputs {
		if _, present := out[p.Name]; !present && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Inputs is the value map handed to Execute, keyed by input port name.
// Values arrive as whatever the graph document or upstream node produced,
// so the accessors coerce the common YAML/JSON scalar encodings.
type Inputs map[string]any

// Outputs is the value map returned by Execute, keyed by output port name.
type Outputs map[string]any

// String returns the named input as a string ("" when absent).
// Numeric and boolean scalars are formatted, since YAML params frequently
// carry unquoted values for string ports.
func (in Inputs) String(name string) string {
	switch v := in[name].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the named input as a float64 (0 when absent or not
// numeric).
func (in Inputs) Float(name string) float64 {
	switch v := in[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the named input as an int (0 when absent or not numeric).
func (in Inputs) Int(name string) int {
	switch v := in[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool returns the named input as a bool (false when absent).
func (in Inputs) Bool(name string) bool {
	switch v := in[name].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false
		}
		return b
	default:
		return false
	}
}

// Node is the contract every plugin node implements.
type Node interface {
	// Schema describes the node's identity and ports. Must be constant
	// for the lifetime of the node.
	Schema() Schema

	// Execute runs the node once. Inputs have defaults already applied.
	// Execute must not retain or mutate its inputs.
	Execute(ctx context.Context, in Inputs) (Outputs, error)
}

// ValidateCombo checks a combo-style input against its declared options.
// Ports without options accept anything.
func ValidateCombo(p Port, value string) error {
	if len(p.Options) == 0 {
		return nil
	}
	for _, opt := range p.Options {
		if opt == value {
			return nil
		}
	}
	return fmt.Errorf("input %q: %q is not one of %v", p.Name, value, p.Options)
}
