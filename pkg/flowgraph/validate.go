package flowgraph

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Port types understood by the compatibility matrix.
const (
	TypeMessage       = "Message"
	TypeLanguageModel = "LanguageModel"
	TypeTool          = "Tool"
	TypeEmbeddings    = "Embeddings"
	TypeData          = "Data"
	TypeRetriever     = "Retriever"
)

// fieldKinds restricts which target fields an output type may feed. Types
// absent from this table (Message, Data) may feed any field whose input
// types include them.
var fieldKinds = map[string][]string{
	TypeLanguageModel: {"agent_llm", "llm"},
	TypeTool:          {"tools"},
	TypeEmbeddings:    {"embedding"},
	TypeRetriever:     {"retriever"},
}

var matrixTypes = []string{TypeMessage, TypeLanguageModel, TypeTool, TypeEmbeddings, TypeData, TypeRetriever}

var nodeIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-([A-Za-z0-9]{5,})$`)

// Catalog resolves component types to their port contracts.
type Catalog interface {
	Lookup(componentType string) (ComponentSpec, bool)
}

// ComponentSpec is the port contract of one component type.
type ComponentSpec struct {
	Type        string
	DisplayName string
	Description string
	BaseClasses []string
	Outputs     []PortSpec
	Inputs      []PortSpec
}

// PortSpec is one input field or output port of a component.
type PortSpec struct {
	Name      string
	Types     []string
	List      bool
	FieldType string
	Required  bool
	Info      string
}

// Input returns the input port with the given field name.
func (c ComponentSpec) Input(name string) (PortSpec, bool) {
	for _, p := range c.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Output returns the output port with the given name.
func (c ComponentSpec) Output(name string) (PortSpec, bool) {
	for _, p := range c.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

type options struct {
	catalog Catalog
}

// Option configures Validate and Normalize.
type Option func(*options)

// WithCatalog restricts the graph to the catalog's vocabulary: unknown
// component types, unknown ports and port types outside the compatibility
// matrix are rejected. Normalize uses it to hydrate partial nodes.
func WithCatalog(c Catalog) Option {
	return func(o *options) { o.catalog = c }
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structValidator
}

// Validate checks g structurally, referentially and semantically, in that
// order, and returns the defects of the first failing stage. A nil result
// means the graph is valid.
func Validate(g *FlowGraph, opts ...Option) ValidationErrors {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if g == nil {
		return ValidationErrors{{Stage: StageStructural, Path: "$", Message: "graph is nil"}}
	}

	descriptors, errs := validateStructure(g)
	if len(errs) > 0 {
		return errs
	}
	if errs := validateReferences(g, descriptors); len(errs) > 0 {
		return errs
	}
	if errs := validateSemantics(g, descriptors, o.catalog); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStructure(g *FlowGraph) ([]PortDescriptor, ValidationErrors) {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Stage: StageStructural, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if err := getValidator().Struct(g); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			add("$", "%v", err)
			return nil, errs
		}
		for _, fe := range fieldErrs {
			add(trimNamespace(fe.Namespace()), "failed %q constraint", fe.Tag())
		}
		return nil, errs
	}

	seen := make(map[string]int, len(g.Data.Nodes))
	for i, n := range g.Data.Nodes {
		path := fmt.Sprintf("data.nodes[%d]", i)
		if prev, dup := seen[n.ID]; dup {
			add(path+".id", "duplicate node id %q (first at data.nodes[%d])", n.ID, prev)
		}
		seen[n.ID] = i

		m := nodeIDPattern.FindStringSubmatch(n.ID)
		switch {
		case m == nil:
			add(path+".id", "node id %q does not match {ComponentType}-{suffix}", n.ID)
		case m[1] != n.Data.Type:
			add(path+".id", "node id %q does not start with its component type %q", n.ID, n.Data.Type)
		}
		if n.Data.ID != "" && n.Data.ID != n.ID {
			add(path+".data.id", "data.id %q differs from node id %q", n.Data.ID, n.ID)
		}
		for name, f := range n.Data.Node.Template {
			if f.Type == "" {
				add(path+".data.node.template."+name, "field type is required")
			}
		}
	}

	edgeIDs := make(map[string]struct{}, len(g.Data.Edges))
	descriptors := make([]PortDescriptor, len(g.Data.Edges))
	for i, e := range g.Data.Edges {
		path := fmt.Sprintf("data.edges[%d]", i)
		if _, dup := edgeIDs[e.ID]; dup {
			add(path+".id", "duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = struct{}{}

		d, err := DecodeEdge(e)
		if err != nil {
			add(path, "%v", err)
			continue
		}
		if d.Target.FieldName == "" {
			add(path+".targetHandle", "fieldName is required")
		}
		if d.Source.Name == "" {
			add(path+".sourceHandle", "name is required")
		}
		descriptors[i] = d
	}
	return descriptors, errs
}

func validateReferences(g *FlowGraph, descriptors []PortDescriptor) ValidationErrors {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Stage: StageReferential, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	for i, e := range g.Data.Edges {
		path := fmt.Sprintf("data.edges[%d]", i)
		d := descriptors[i]

		src, ok := g.Node(e.Source)
		if !ok {
			add(path+".source", "source node %q not found", e.Source)
		}
		tgt, ok := g.Node(e.Target)
		if !ok {
			add(path+".target", "target node %q not found", e.Target)
		}
		if e.Source == e.Target {
			add(path, "self-loop on node %q", e.Source)
		}
		if d.Source.ID != e.Source {
			add(path+".sourceHandle", "handle id %q does not match source %q", d.Source.ID, e.Source)
		}
		if d.Target.ID != e.Target {
			add(path+".targetHandle", "handle id %q does not match target %q", d.Target.ID, e.Target)
		}
		if e.Data != nil && (e.Data.SourceHandle.ID != e.Source || e.Data.TargetHandle.ID != e.Target) {
			add(path+".data", "decoded handle copy disagrees with edge endpoints")
		}

		if src != nil && len(src.Data.Node.Outputs) > 0 && !hasOutput(src, d.Source.Name) {
			add(path+".sourceHandle", "node %q has no output %q", src.ID, d.Source.Name)
		}
		if tgt != nil {
			if _, ok := tgt.Data.Node.Template[d.Target.FieldName]; !ok {
				add(path+".targetHandle", "node %q has no input field %q", tgt.ID, d.Target.FieldName)
			}
		}
	}
	return errs
}

func validateSemantics(g *FlowGraph, descriptors []PortDescriptor, cat Catalog) ValidationErrors {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Stage: StageSemantic, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cat != nil {
		for i, n := range g.Data.Nodes {
			if _, ok := cat.Lookup(n.Data.Type); !ok {
				add(fmt.Sprintf("data.nodes[%d].data.type", i), "unknown component type %q", n.Data.Type)
			}
		}
	}

	fanIn := make(map[string]int)
	for i, e := range g.Data.Edges {
		path := fmt.Sprintf("data.edges[%d]", i)
		d := descriptors[i]
		src, _ := g.Node(e.Source)
		tgt, _ := g.Node(e.Target)

		inputTypes := d.Target.InputTypes
		field := tgt.Data.Node.Template[d.Target.FieldName]
		if len(field.InputTypes) > 0 {
			inputTypes = intersect(inputTypes, field.InputTypes)
		}
		list := field.List

		if cat != nil {
			if spec, ok := cat.Lookup(src.Data.Type); ok {
				if _, ok := spec.Output(d.Source.Name); !ok {
					add(path+".sourceHandle", "%s has no output %q", src.Data.Type, d.Source.Name)
				}
			}
			if spec, ok := cat.Lookup(tgt.Data.Type); ok {
				in, ok := spec.Input(d.Target.FieldName)
				if !ok {
					add(path+".targetHandle", "%s has no input %q", tgt.Data.Type, d.Target.FieldName)
				} else {
					list = list || in.List
				}
			}
		}

		if _, ok := PortCompatible(d.Source.OutputTypes, inputTypes, d.Target.FieldName, cat != nil); !ok {
			add(path, "output %s%v of %q cannot feed field %q accepting %v",
				d.Source.Name, d.Source.OutputTypes, e.Source, d.Target.FieldName, inputTypes)
		}

		key := e.Target + "|" + d.Target.FieldName
		fanIn[key]++
		if fanIn[key] > 1 && !list && d.Target.FieldName != "tools" {
			add(path, "field %q of %q accepts a single connection", d.Target.FieldName, e.Target)
		}
	}
	return errs
}

// PortCompatible reports whether an output declaring outputTypes may feed the
// field fieldName accepting inputTypes, and returns the matching type. In
// strict mode only the types of the compatibility matrix are accepted.
func PortCompatible(outputTypes, inputTypes []string, fieldName string, strict bool) (string, bool) {
	for _, t := range intersect(outputTypes, inputTypes) {
		if fields, restricted := fieldKinds[t]; restricted {
			if slices.Contains(fields, fieldName) {
				return t, true
			}
			continue
		}
		if strict && !slices.Contains(matrixTypes, t) {
			continue
		}
		return t, true
	}
	return "", false
}

func hasOutput(n *Node, name string) bool {
	for _, o := range n.Data.Node.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		if slices.Contains(b, x) && !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
