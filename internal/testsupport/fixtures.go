// Package testsupport builds flow fixtures shared by package tests.
package testsupport

import (
	json "github.com/goccy/go-json"

	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
)

// Node ids of the ChatbotGraph fixture.
const (
	ChatInputID  = "ChatInput-a1B2c3"
	SearchToolID = "TavilySearchComponent-x9Y8z7"
	AgentID      = "Agent-Q1w2E3"
	ChatOutputID = "ChatOutput-Z0p9L8"
)

// NewNode returns a catalog-hydrated node of componentType without a position.
func NewNode(id, componentType string) flowgraph.Node {
	n := flowgraph.Node{
		ID:   id,
		Type: flowgraph.NodeKind,
		Data: flowgraph.NodeData{ID: id, Type: componentType},
	}
	if spec, ok := catalog.Default().Lookup(componentType); ok {
		flowgraph.Hydrate(&n, spec)
	}
	return n
}

// MustConnect wires output of src to field of tgt, panicking on encoding errors.
func MustConnect(srcType, srcID, output string, outputTypes []string, tgtID, field string, inputTypes []string, fieldType string) flowgraph.Edge {
	e, err := flowgraph.Connect(
		flowgraph.SourceHandle{DataType: srcType, ID: srcID, Name: output, OutputTypes: outputTypes},
		flowgraph.TargetHandle{FieldName: field, ID: tgtID, InputTypes: inputTypes, Type: fieldType},
	)
	if err != nil {
		panic(err)
	}
	return e
}

// ChatbotGraph returns a valid "search the web and summarize" flow:
// ChatInput -> Agent <- TavilySearch (as tool), Agent -> ChatOutput.
func ChatbotGraph() *flowgraph.FlowGraph {
	g := &flowgraph.FlowGraph{
		Name:        "Web Search Chatbot",
		Description: "Searches the web and summarizes results.",
		Data: flowgraph.GraphData{
			Nodes: []flowgraph.Node{
				NewNode(ChatInputID, "ChatInput"),
				NewNode(SearchToolID, "TavilySearchComponent"),
				NewNode(AgentID, "Agent"),
				NewNode(ChatOutputID, "ChatOutput"),
			},
			Edges: []flowgraph.Edge{
				MustConnect("ChatInput", ChatInputID, "message", []string{"Message"}, AgentID, "input_value", []string{"Message"}, "str"),
				MustConnect("TavilySearchComponent", SearchToolID, "component_as_tool", []string{"Tool"}, AgentID, "tools", []string{"Tool"}, "other"),
				MustConnect("Agent", AgentID, "response", []string{"Message"}, ChatOutputID, "input_value", []string{"Message", "Data"}, "str"),
			},
		},
	}
	flowgraph.Layout(g)
	g.Data.Viewport = &flowgraph.Viewport{Zoom: 1}
	return g
}

// ChatbotJSON returns ChatbotGraph wrapped in the generation output contract.
func ChatbotJSON() string {
	doc := map[string]any{
		"workflow": ChatbotGraph(),
		"explanation": map[string]any{
			"overview":       "An agent that searches the web and summarizes what it finds.",
			"components":     []map[string]string{{"name": "Agent", "type": "Agent", "purpose": "Plans searches and writes the summary", "configuration": "default model"}},
			"dataFlow":       "Chat Input -> Agent (with Tavily tool) -> Chat Output",
			"expectedOutput": "A short summary with sources.",
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
