package flowgraph

import (
	"crypto/rand"
	"io"
	"slices"
)

// Default layout constants, in canvas units.
const (
	LayoutOriginX = 100
	LayoutOriginY = 200
	LayoutStepX   = 400
	LayoutStepY   = 150
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// IDSuffixLength is the length of generated node id suffixes.
const IDSuffixLength = 6

// Normalize fills in what generated graphs commonly omit: node ids, node
// positions, edge ids, the decoded handle copies and the viewport. With a
// catalog it also hydrates template fields and outputs of known components.
// Values already present are never overwritten.
func Normalize(g *FlowGraph, opts ...Option) error {
	return NormalizeWithRand(g, rand.Reader, opts...)
}

// NormalizeWithRand is Normalize with an explicit randomness source for id
// generation.
func NormalizeWithRand(g *FlowGraph, rnd io.Reader, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	taken := make(map[string]struct{}, len(g.Data.Nodes))
	for _, n := range g.Data.Nodes {
		if n.ID != "" {
			taken[n.ID] = struct{}{}
		}
	}
	for i := range g.Data.Nodes {
		n := &g.Data.Nodes[i]
		if n.Type == "" {
			n.Type = NodeKind
		}
		if n.ID == "" {
			id, err := NewNodeID(n.Data.Type, taken, rnd)
			if err != nil {
				return err
			}
			n.ID = id
			taken[id] = struct{}{}
		}
		if n.Data.ID == "" {
			n.Data.ID = n.ID
		}
		if o.catalog != nil {
			if spec, ok := o.catalog.Lookup(n.Data.Type); ok {
				Hydrate(n, spec)
			}
		}
	}

	for i := range g.Data.Edges {
		e := &g.Data.Edges[i]
		if e.Data == nil {
			if d, err := DecodeEdge(*e); err == nil {
				e.Data = &EdgeData{SourceHandle: d.Source, TargetHandle: d.Target}
			}
		}
		if e.ID == "" && e.SourceHandle != "" && e.TargetHandle != "" {
			e.ID = EdgeID(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
		}
	}

	Layout(g)
	if g.Data.Viewport == nil {
		g.Data.Viewport = &Viewport{Zoom: 1}
	}
	return nil
}

// NewNodeID returns {componentType}-{6 random alphanumerics}, retrying until
// the id is not in taken.
func NewNodeID(componentType string, taken map[string]struct{}, rnd io.Reader) (string, error) {
	// Bytes at or above this bound are rejected so every symbol is equally likely.
	bound := 256 - 256%len(idAlphabet)
	b := make([]byte, 1)
	for {
		suffix := make([]byte, IDSuffixLength)
		for i := range suffix {
			for {
				if _, err := io.ReadFull(rnd, b); err != nil {
					return "", err
				}
				if int(b[0]) < bound {
					suffix[i] = idAlphabet[int(b[0])%len(idAlphabet)]
					break
				}
			}
		}
		id := componentType + "-" + string(suffix)
		if _, dup := taken[id]; !dup {
			return id, nil
		}
	}
}

// Layout assigns a position to every node that has none. A node's column is
// the length of the longest edge path reaching it; the first node of a column
// sits on the origin row and parallel branches step down. Nodes that already
// have a position keep it.
func Layout(g *FlowGraph) {
	level := levels(g)
	rows := make(map[int]int)
	for i := range g.Data.Nodes {
		n := &g.Data.Nodes[i]
		col := level[n.ID]
		row := rows[col]
		rows[col]++
		if n.Position != nil {
			continue
		}
		n.Position = &Position{
			X: float64(LayoutOriginX + LayoutStepX*col),
			Y: float64(LayoutOriginY + LayoutStepY*row),
		}
	}
}

// levels computes the longest-path depth of every node. Edges closing a
// cycle are ignored.
func levels(g *FlowGraph) map[string]int {
	adj := make(map[string][]string)
	indeg := make(map[string]int, len(g.Data.Nodes))
	for _, n := range g.Data.Nodes {
		indeg[n.ID] += 0
	}
	for _, e := range g.Data.Edges {
		if _, ok := indeg[e.Source]; !ok {
			continue
		}
		if _, ok := indeg[e.Target]; !ok || e.Source == e.Target {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
		indeg[e.Target]++
	}

	level := make(map[string]int, len(g.Data.Nodes))
	var queue []string
	for _, n := range g.Data.Nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if level[id]+1 > level[next] {
				level[next] = level[id] + 1
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return level
}

// Hydrate completes n with the catalog contract of its component type:
// missing template fields, outputs, display name and base classes.
func Hydrate(n *Node, spec ComponentSpec) {
	ns := &n.Data.Node
	if ns.Template == nil {
		ns.Template = make(map[string]TemplateField, len(spec.Inputs))
	}
	for _, in := range spec.Inputs {
		if _, ok := ns.Template[in.Name]; ok {
			continue
		}
		fieldType := in.FieldType
		if fieldType == "" {
			fieldType = "other"
		}
		ns.Template[in.Name] = TemplateField{
			Type:       fieldType,
			Name:       in.Name,
			Required:   in.Required,
			List:       in.List,
			Show:       true,
			InputTypes: slices.Clone(in.Types),
			Info:       in.Info,
		}
	}
	if len(ns.Outputs) == 0 {
		for _, out := range spec.Outputs {
			ns.Outputs = append(ns.Outputs, Output{Name: out.Name, Types: slices.Clone(out.Types), Selected: firstOf(out.Types)})
		}
	}
	if ns.DisplayName == "" {
		ns.DisplayName = spec.DisplayName
	}
	if ns.Description == "" {
		ns.Description = spec.Description
	}
	if len(ns.BaseClasses) == 0 {
		ns.BaseClasses = slices.Clone(spec.BaseClasses)
	}
	if len(ns.OutputTypes) == 0 {
		for _, out := range spec.Outputs {
			for _, t := range out.Types {
				if !slices.Contains(ns.OutputTypes, t) {
					ns.OutputTypes = append(ns.OutputTypes, t)
				}
			}
		}
	}
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
