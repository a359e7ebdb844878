package catalog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
)

func TestDefault_Lookup(t *testing.T) {
	c := catalog.Default()

	agent, ok := c.Lookup("Agent")
	require.True(t, ok)
	tools, ok := agent.Input("tools")
	require.True(t, ok)
	assert.True(t, tools.List)
	assert.Equal(t, []string{flowgraph.TypeTool}, tools.Types)

	_, ok = c.Lookup("MysteryBox")
	assert.False(t, ok)
}

func TestTypes_DeclarationOrderAndCopy(t *testing.T) {
	c := catalog.Default()
	types := c.Types()
	require.NotEmpty(t, types)
	assert.Equal(t, "ChatInput", types[0])
	assert.Len(t, c.Components(), len(types))

	types[0] = "changed"
	assert.Equal(t, "ChatInput", c.Types()[0])
}

func TestNew_LaterSpecReplaces(t *testing.T) {
	c := catalog.New(
		flowgraph.ComponentSpec{Type: "A", Description: "first"},
		flowgraph.ComponentSpec{Type: "B"},
		flowgraph.ComponentSpec{Type: "A", Description: "second"},
	)
	assert.Equal(t, []string{"A", "B"}, c.Types())
	a, _ := c.Lookup("A")
	assert.Equal(t, "second", a.Description)
}

func TestProducers(t *testing.T) {
	c := catalog.Default()
	assert.Equal(t, []string{"AnthropicModel", "OpenAIModel"}, c.Producers(flowgraph.TypeLanguageModel))
	assert.Equal(t, []string{"OpenAIEmbeddings"}, c.Producers(flowgraph.TypeEmbeddings))
	assert.Contains(t, c.Producers(flowgraph.TypeTool), "TavilySearchComponent")
	assert.Empty(t, c.Producers("Nothing"))
}

func TestPrompt(t *testing.T) {
	p := catalog.Default().Prompt()

	assert.True(t, strings.HasPrefix(p, "You design Langflow flows"))
	for _, typ := range catalog.Default().Types() {
		assert.Contains(t, p, "\n"+typ+": ")
	}
	assert.Contains(t, p, "  in  tools [Tool] (type other, list)")
	assert.Contains(t, p, "  out model_output [LanguageModel]")
	// Fields without connectable types are configuration, not ports.
	assert.NotContains(t, p, "in  api_key")
}
