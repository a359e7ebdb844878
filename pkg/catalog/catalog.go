// Package catalog holds the fixed vocabulary of components a generated flow
// may use, together with their port contracts.
package catalog

import (
	"slices"
	"sort"

	"flowsmith/backend/pkg/flowgraph"
)

// Catalog is an immutable set of component contracts. It implements
// flowgraph.Catalog.
type Catalog struct {
	components map[string]flowgraph.ComponentSpec
	order      []string
}

// New builds a catalog from specs. Later specs replace earlier ones with the
// same type.
func New(specs ...flowgraph.ComponentSpec) *Catalog {
	c := &Catalog{components: make(map[string]flowgraph.ComponentSpec, len(specs))}
	for _, s := range specs {
		if _, dup := c.components[s.Type]; !dup {
			c.order = append(c.order, s.Type)
		}
		c.components[s.Type] = s
	}
	return c
}

// Default returns the built-in component catalog.
func Default() *Catalog {
	return New(builtin...)
}

// Lookup returns the contract of componentType.
func (c *Catalog) Lookup(componentType string) (flowgraph.ComponentSpec, bool) {
	s, ok := c.components[componentType]
	return s, ok
}

// Types returns the component types in declaration order.
func (c *Catalog) Types() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Components returns every contract in declaration order.
func (c *Catalog) Components() []flowgraph.ComponentSpec {
	out := make([]flowgraph.ComponentSpec, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.components[t])
	}
	return out
}

// Producers returns the component types with an output of portType, sorted.
func (c *Catalog) Producers(portType string) []string {
	var out []string
	for t, s := range c.components {
		for _, o := range s.Outputs {
			if slices.Contains(o.Types, portType) {
				out = append(out, t)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func msg(name, info string) flowgraph.PortSpec {
	return flowgraph.PortSpec{Name: name, Types: []string{flowgraph.TypeMessage}, FieldType: "str", Info: info}
}

func out(name string, types ...string) flowgraph.PortSpec {
	return flowgraph.PortSpec{Name: name, Types: types}
}

var builtin = []flowgraph.ComponentSpec{
	{
		Type:        "ChatInput",
		DisplayName: "Chat Input",
		Description: "Get chat inputs from the Playground.",
		BaseClasses: []string{"Message"},
		Inputs:      []flowgraph.PortSpec{{Name: "input_value", FieldType: "str", Info: "Message to be passed as input."}},
		Outputs:     []flowgraph.PortSpec{out("message", flowgraph.TypeMessage)},
	},
	{
		Type:        "TextInput",
		DisplayName: "Text Input",
		Description: "Get text inputs from the Playground.",
		BaseClasses: []string{"Message"},
		Inputs:      []flowgraph.PortSpec{{Name: "input_value", FieldType: "str"}},
		Outputs:     []flowgraph.PortSpec{out("text", flowgraph.TypeMessage)},
	},
	{
		Type:        "ChatOutput",
		DisplayName: "Chat Output",
		Description: "Display a chat message in the Playground.",
		BaseClasses: []string{"Message"},
		Inputs: []flowgraph.PortSpec{{
			Name: "input_value", Types: []string{flowgraph.TypeMessage, flowgraph.TypeData},
			FieldType: "str", Required: true, Info: "Message to be passed as output.",
		}},
		Outputs: []flowgraph.PortSpec{out("message", flowgraph.TypeMessage)},
	},
	{
		Type:        "Prompt",
		DisplayName: "Prompt",
		Description: "Create a prompt template with dynamic variables.",
		BaseClasses: []string{"Message"},
		Inputs: []flowgraph.PortSpec{
			{Name: "template", FieldType: "prompt"},
			msg("context", "Context injected into the template."),
			msg("question", "Question injected into the template."),
		},
		Outputs: []flowgraph.PortSpec{out("prompt", flowgraph.TypeMessage)},
	},
	{
		Type:        "Agent",
		DisplayName: "Agent",
		Description: "Define the agent's instructions, then enter a task to complete using tools.",
		BaseClasses: []string{"Message"},
		Inputs: []flowgraph.PortSpec{
			{Name: "agent_llm", Types: []string{flowgraph.TypeLanguageModel}, FieldType: "str", Info: "The provider of the language model."},
			{Name: "tools", Types: []string{flowgraph.TypeTool}, FieldType: "other", List: true, Info: "Tools available to the agent."},
			msg("input_value", "The input provided by the user for the agent to process."),
			{Name: "system_prompt", FieldType: "str", Info: "System prompt to guide the agent's behavior."},
		},
		Outputs: []flowgraph.PortSpec{out("response", flowgraph.TypeMessage)},
	},
	{
		Type:        "OpenAIModel",
		DisplayName: "OpenAI",
		Description: "Generates text using OpenAI LLMs.",
		BaseClasses: []string{"LanguageModel", "Message"},
		Inputs: []flowgraph.PortSpec{
			msg("input_value", ""),
			msg("system_message", "System message to pass to the model."),
			{Name: "model_name", FieldType: "str"},
			{Name: "api_key", FieldType: "str", Required: true},
		},
		Outputs: []flowgraph.PortSpec{
			out("text_output", flowgraph.TypeMessage),
			out("model_output", flowgraph.TypeLanguageModel),
		},
	},
	{
		Type:        "AnthropicModel",
		DisplayName: "Anthropic",
		Description: "Generate text using Anthropic Chat & Completion LLMs.",
		BaseClasses: []string{"LanguageModel", "Message"},
		Inputs: []flowgraph.PortSpec{
			msg("input_value", ""),
			msg("system_message", "System message to pass to the model."),
			{Name: "model_name", FieldType: "str"},
			{Name: "api_key", FieldType: "str", Required: true},
		},
		Outputs: []flowgraph.PortSpec{
			out("text_output", flowgraph.TypeMessage),
			out("model_output", flowgraph.TypeLanguageModel),
		},
	},
	{
		Type:        "TavilySearchComponent",
		DisplayName: "Tavily AI Search",
		Description: "Search the web with Tavily and return summarized results.",
		BaseClasses: []string{"Data", "Tool"},
		Inputs:      []flowgraph.PortSpec{{Name: "api_key", FieldType: "str", Required: true}, msg("query", "The search query.")},
		Outputs:     []flowgraph.PortSpec{out("component_as_tool", flowgraph.TypeTool), out("data", flowgraph.TypeData)},
	},
	{
		Type:        "URLComponent",
		DisplayName: "URL",
		Description: "Fetch content from one or more URLs.",
		BaseClasses: []string{"Data", "Tool"},
		Inputs:      []flowgraph.PortSpec{{Name: "urls", FieldType: "str", List: true}},
		Outputs:     []flowgraph.PortSpec{out("component_as_tool", flowgraph.TypeTool), out("data", flowgraph.TypeData)},
	},
	{
		Type:        "CalculatorComponent",
		DisplayName: "Calculator",
		Description: "Perform basic arithmetic operations on an expression.",
		BaseClasses: []string{"Tool"},
		Inputs:      []flowgraph.PortSpec{{Name: "expression", FieldType: "str"}},
		Outputs:     []flowgraph.PortSpec{out("component_as_tool", flowgraph.TypeTool)},
	},
	{
		Type:        "OpenAIEmbeddings",
		DisplayName: "OpenAI Embeddings",
		Description: "Generate embeddings using OpenAI models.",
		BaseClasses: []string{"Embeddings"},
		Inputs:      []flowgraph.PortSpec{{Name: "model", FieldType: "str"}, {Name: "openai_api_key", FieldType: "str", Required: true}},
		Outputs:     []flowgraph.PortSpec{out("embeddings", flowgraph.TypeEmbeddings)},
	},
	{
		Type:        "File",
		DisplayName: "File",
		Description: "Load a file to be used in your project.",
		BaseClasses: []string{"Data"},
		Inputs:      []flowgraph.PortSpec{{Name: "path", FieldType: "file"}},
		Outputs:     []flowgraph.PortSpec{out("data", flowgraph.TypeData)},
	},
	{
		Type:        "SplitText",
		DisplayName: "Split Text",
		Description: "Split text into chunks based on specified criteria.",
		BaseClasses: []string{"Data"},
		Inputs: []flowgraph.PortSpec{
			{Name: "data_inputs", Types: []string{flowgraph.TypeData}, FieldType: "other", List: true, Required: true},
			{Name: "chunk_size", FieldType: "int"},
			{Name: "chunk_overlap", FieldType: "int"},
		},
		Outputs: []flowgraph.PortSpec{out("chunks", flowgraph.TypeData)},
	},
	{
		Type:        "ParseData",
		DisplayName: "Data to Message",
		Description: "Convert Data objects into Messages using a template.",
		BaseClasses: []string{"Message"},
		Inputs: []flowgraph.PortSpec{
			{Name: "data", Types: []string{flowgraph.TypeData}, FieldType: "other", List: true, Required: true},
			{Name: "template", FieldType: "str"},
		},
		Outputs: []flowgraph.PortSpec{out("text", flowgraph.TypeMessage)},
	},
	{
		Type:        "Chroma",
		DisplayName: "Chroma DB",
		Description: "Chroma vector store with search capabilities.",
		BaseClasses: []string{"Data", "Retriever"},
		Inputs: []flowgraph.PortSpec{
			{Name: "ingest_data", Types: []string{flowgraph.TypeData}, FieldType: "other", List: true},
			{Name: "embedding", Types: []string{flowgraph.TypeEmbeddings}, FieldType: "other"},
			msg("search_query", "Query used to search the collection."),
			{Name: "collection_name", FieldType: "str"},
		},
		Outputs: []flowgraph.PortSpec{
			out("search_results", flowgraph.TypeData),
			out("base_retriever", flowgraph.TypeRetriever),
		},
	},
	{
		Type:        "RetrieverTool",
		DisplayName: "Retriever Tool",
		Description: "Expose a retriever to an agent as a tool.",
		BaseClasses: []string{"Tool"},
		Inputs: []flowgraph.PortSpec{
			{Name: "retriever", Types: []string{flowgraph.TypeRetriever}, FieldType: "other", Required: true},
			{Name: "name", FieldType: "str"},
			{Name: "description", FieldType: "str"},
		},
		Outputs: []flowgraph.PortSpec{out("component_as_tool", flowgraph.TypeTool)},
	},
	{
		Type:        "RetrievalQA",
		DisplayName: "Retrieval QA",
		Description: "Answer questions using a retriever and a language model.",
		BaseClasses: []string{"Message"},
		Inputs: []flowgraph.PortSpec{
			{Name: "llm", Types: []string{flowgraph.TypeLanguageModel}, FieldType: "other", Required: true},
			{Name: "retriever", Types: []string{flowgraph.TypeRetriever}, FieldType: "other", Required: true},
			msg("input_value", "The question to answer."),
		},
		Outputs: []flowgraph.PortSpec{out("text", flowgraph.TypeMessage)},
	},
}
