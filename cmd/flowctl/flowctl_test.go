package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/repository"
	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStarterGraphIsValid(t *testing.T) {
	g, err := starterGraph()
	require.NoError(t, err)
	require.Len(t, g.Data.Nodes, 3)
	require.Len(t, g.Data.Edges, 2)
	assert.Empty(t, flowgraph.Validate(g, flowgraph.WithCatalog(catalog.Default())))
	assert.Less(t, g.Data.Nodes[0].Position.X, g.Data.Nodes[2].Position.X)
}

func TestSeed_Idempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	a := &app{logger: logging.Nop()}
	ctx := context.Background()

	require.NoError(t, seed(ctx, a, store))
	require.NoError(t, seed(ctx, a, store))

	user, err := store.GetUserByExternalID(ctx, auth.DevIdentity)
	require.NoError(t, err)
	workflows, err := store.ListWorkflows(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, starterName, workflows[0].Name)
}

func TestHandleCommands_RoundTrip(t *testing.T) {
	out, err := run(t, "handle", "encode-target", `{"fieldName":"input_value","id":"Agent-Q1w2E3","inputTypes":["Message"],"type":"str"}`)
	require.NoError(t, err)
	encoded := strings.TrimSpace(out)
	assert.Equal(t, "{œfieldNameœ:œinput_valueœ,œidœ:œAgent-Q1w2E3œ,œinputTypesœ:[œMessageœ],œtypeœ:œstrœ}", encoded)

	out, err = run(t, "handle", "decode", encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fieldName":"input_value","id":"Agent-Q1w2E3","inputTypes":["Message"],"type":"str"}`, out)

	out, err = run(t, "handle", "encode-source", `{"dataType":"ChatInput","id":"ChatInput-a1B2c3","name":"message","output_types":["Message"]}`)
	require.NoError(t, err)
	out, err = run(t, "handle", "decode", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataType":"ChatInput","id":"ChatInput-a1B2c3","name":"message","output_types":["Message"]}`, out)

	_, err = run(t, "handle", "decode", "not a handle")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	g, err := starterGraph()
	require.NoError(t, err)
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, raw, 0o600))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"data":{"nodes":[],"edges":[{"source":"x"}]}}`), 0o600))

	out, err := run(t, "validate", "--strict", good)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	out, err = run(t, "validate", bad)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, `"valid": false`)
}
