// Package flowgraph defines the node/edge interchange format shared with the
// Langflow builder and the validator that guards it.
package flowgraph

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// NodeKind is the React Flow node type the builder renders components with.
const NodeKind = "genericNode"

// FlowGraph is the top-level interchange unit. Its JSON form matches the
// builder's native flow export.
type FlowGraph struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Data        GraphData `json:"data"`
	IsComponent bool      `json:"is_component"`
}

// GraphData holds the canvas contents of a flow.
type GraphData struct {
	Nodes    []Node    `json:"nodes" validate:"required,min=1,dive"`
	Edges    []Edge    `json:"edges" validate:"dive"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// Viewport is the canvas pan/zoom state.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one component instance on the canvas.
type Node struct {
	ID       string    `json:"id" validate:"required"`
	Type     string    `json:"type" validate:"required"`
	Position *Position `json:"position,omitempty"`
	Data     NodeData  `json:"data"`
	Width    float64   `json:"width,omitempty"`
	Height   float64   `json:"height,omitempty"`
	Selected bool      `json:"selected,omitempty"`
	Dragging bool      `json:"dragging,omitempty"`
}

// NodeData carries the component type and its definition.
type NodeData struct {
	ID   string   `json:"id"`
	Type string   `json:"type" validate:"required"`
	Node NodeSpec `json:"node"`
}

// NodeSpec is the component definition the builder needs to render the node.
type NodeSpec struct {
	Template      map[string]TemplateField `json:"template" validate:"required"`
	DisplayName   string                   `json:"display_name"`
	Description   string                   `json:"description,omitempty"`
	OutputTypes   []string                 `json:"output_types,omitempty"`
	Outputs       []Output                 `json:"outputs,omitempty" validate:"dive"`
	BaseClasses   []string                 `json:"base_classes,omitempty"`
	Documentation string                   `json:"documentation,omitempty"`
	Beta          bool                     `json:"beta,omitempty"`
	FieldOrder    []string                 `json:"field_order,omitempty"`
}

// TemplateField is a typed input field of a component template.
type TemplateField struct {
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Required    bool     `json:"required"`
	List        bool     `json:"list"`
	Show        bool     `json:"show"`
	Advanced    bool     `json:"advanced"`
	Value       any      `json:"value,omitempty"`
	InputTypes  []string `json:"input_types,omitempty"`
	Info        string   `json:"info,omitempty"`
	Options     []string `json:"options,omitempty"`
	Password    bool     `json:"password,omitempty"`
	Multiline   bool     `json:"multiline,omitempty"`
}

// Output is a declared output port of a component.
type Output struct {
	Name        string   `json:"name" validate:"required"`
	DisplayName string   `json:"display_name,omitempty"`
	Method      string   `json:"method,omitempty"`
	Types       []string `json:"types" validate:"required,min=1"`
	Selected    string   `json:"selected,omitempty"`
	Cache       bool     `json:"cache,omitempty"`
}

// Edge connects an output port of one node to an input field of another.
// SourceHandle and TargetHandle are encoded port descriptors; see EncodeSourceHandle.
type Edge struct {
	ID           string    `json:"id" validate:"required"`
	Source       string    `json:"source" validate:"required"`
	Target       string    `json:"target" validate:"required"`
	SourceHandle string    `json:"sourceHandle" validate:"required"`
	TargetHandle string    `json:"targetHandle" validate:"required"`
	Data         *EdgeData `json:"data,omitempty"`
	Animated     bool      `json:"animated,omitempty"`
	ClassName    string    `json:"className,omitempty"`
	Selected     bool      `json:"selected,omitempty"`
}

// EdgeData is the decoded copy of an edge's handles the builder keeps next to
// the encoded strings.
type EdgeData struct {
	SourceHandle SourceHandle `json:"sourceHandle"`
	TargetHandle TargetHandle `json:"targetHandle"`
}

// Nodes returns the graph's nodes.
func (g *FlowGraph) Nodes() []Node { return g.Data.Nodes }

// Edges returns the graph's edges.
func (g *FlowGraph) Edges() []Edge { return g.Data.Edges }

// Node returns the node with the given id.
func (g *FlowGraph) Node(id string) (*Node, bool) {
	for i := range g.Data.Nodes {
		if g.Data.Nodes[i].ID == id {
			return &g.Data.Nodes[i], true
		}
	}
	return nil, false
}

// ComponentTypes returns the component type of each node, in node order.
func (g *FlowGraph) ComponentTypes() []string {
	out := make([]string, 0, len(g.Data.Nodes))
	for _, n := range g.Data.Nodes {
		out = append(out, n.Data.Type)
	}
	return out
}

// Clone returns a deep copy of g.
func (g *FlowGraph) Clone() (*FlowGraph, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	var out FlowGraph
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Parse decodes an untrusted JSON document into a FlowGraph. Both the full
// flow form ({"name", "data": {...}}) and the bare canvas form
// ({"nodes", "edges", "viewport"}) are accepted. Decoding failures, including
// primitive type mismatches, are reported as structural ValidationErrors.
func Parse(raw []byte) (*FlowGraph, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ValidationErrors{{Stage: StageStructural, Path: "$", Message: "expected a JSON object"}}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, ValidationErrors{{Stage: StageStructural, Path: "$", Message: err.Error()}}
	}

	var g FlowGraph
	if _, bare := fields["nodes"]; bare {
		var data GraphData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, ValidationErrors{{Stage: StageStructural, Path: "$", Message: typeErrorMessage(err)}}
		}
		g.Data = data
		for _, key := range []string{"name", "description"} {
			if v, ok := fields[key]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					return nil, ValidationErrors{{Stage: StageStructural, Path: key, Message: "must be a string"}}
				}
				if key == "name" {
					g.Name = s
				} else {
					g.Description = s
				}
			}
		}
		return &g, nil
	}

	if _, ok := fields["data"]; !ok {
		return nil, ValidationErrors{{Stage: StageStructural, Path: "data", Message: "required key missing"}}
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, ValidationErrors{{Stage: StageStructural, Path: "$", Message: typeErrorMessage(err)}}
	}
	return &g, nil
}

func typeErrorMessage(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return fmt.Sprintf("field %q must be %s, got %s", te.Field, te.Type, te.Value)
	}
	return err.Error()
}
