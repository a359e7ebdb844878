package catalog

import (
	"fmt"
	"strings"

	"flowsmith/backend/pkg/flowgraph"
)

const promptHeader = `You design Langflow flows from a user's description.

Reply with a single JSON object and nothing else:
{"workflow": {"name": string, "description": string, "data": {"nodes": [...], "edges": [...]}},
 "explanation": {"overview": string, "components": [{"name", "type", "purpose", "configuration"}], "dataFlow": string, "expectedOutput": string}}

Node shape: {"id": "<ComponentType>-<6 alphanumerics>", "type": "genericNode", "data": {"type": "<ComponentType>", "node": {"template": {}}}}
Positions and template details may be omitted.

Edge shape: {"source": <node id>, "target": <node id>, "sourceHandle": <encoded source>, "targetHandle": <encoded target>}
A handle is a compact JSON object in which every double quote is replaced by the character œ:
  sourceHandle {œdataTypeœ:œ<ComponentType>œ,œidœ:œ<node id>œ,œnameœ:œ<output>œ,œoutput_typesœ:[œ<type>œ]}
  targetHandle {œfieldNameœ:œ<field>œ,œidœ:œ<node id>œ,œinputTypesœ:[œ<type>œ],œtypeœ:œ<field type>œ}

Connection rules:
  Message       -> fields accepting Message
  LanguageModel -> agent_llm or llm
  Tool          -> tools (many tools may connect to one agent)
  Embeddings    -> embedding
  Data          -> fields accepting Data
  Retriever     -> retriever

Only these components exist:
`

// Prompt renders the system instructions handed to the generative backend.
func (c *Catalog) Prompt() string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, s := range c.Components() {
		fmt.Fprintf(&b, "\n%s: %s\n", s.Type, s.Description)
		for _, in := range s.Inputs {
			if len(in.Types) == 0 {
				continue
			}
			list := ""
			if in.List {
				list = ", list"
			}
			fmt.Fprintf(&b, "  in  %s [%s] (type %s%s)\n", in.Name, strings.Join(in.Types, ", "), fieldType(in), list)
		}
		for _, o := range s.Outputs {
			fmt.Fprintf(&b, "  out %s [%s]\n", o.Name, strings.Join(o.Types, ", "))
		}
	}
	return b.String()
}

func fieldType(p flowgraph.PortSpec) string {
	if p.FieldType == "" {
		return "other"
	}
	return p.FieldType
}
