package repository

import (
	"context"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/testsupport"
	"flowsmith/backend/pkg/models"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

// runStoreContract exercises behavior every Store must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, &models.User{ExternalID: "alice@example.com", Username: "alice"})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, &models.User{ExternalID: "bob@example.com", Username: "bob"})
	require.NoError(t, err)

	newWorkflow := func(name string) models.NewWorkflow {
		return models.NewWorkflow{
			Name:         name,
			Description:  "desc " + name,
			WorkflowJSON: *testsupport.ChatbotGraph(),
			Explanation:  &models.WorkflowExplanation{Overview: "o", Components: []models.ComponentRationale{{Name: "Agent"}}},
		}
	}

	t.Run("create and get", func(t *testing.T) {
		created, err := store.CreateWorkflow(ctx, alice.ID, newWorkflow("first"))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, alice.ID, created.OwnerID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Nil(t, created.LangflowFlowID)

		got, err := store.GetWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
		assert.JSONEq(t, mustJSON(t, testsupport.ChatbotGraph()), mustJSON(t, got.WorkflowJSON))
		require.NotNil(t, got.Explanation)
		assert.Equal(t, "o", got.Explanation.Overview)
	})

	t.Run("other owner sees not found", func(t *testing.T) {
		created, err := store.CreateWorkflow(ctx, alice.ID, newWorkflow("private"))
		require.NoError(t, err)

		_, err = store.GetWorkflow(ctx, bob.ID, created.ID)
		var nf *apperr.NotFoundError
		assert.ErrorAs(t, err, &nf)

		name := "stolen"
		ok, err := store.UpdateWorkflow(ctx, bob.ID, created.ID, models.WorkflowPatch{Name: &name})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.DeleteWorkflow(ctx, bob.ID, created.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.GetWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "private", got.Name)
	})

	t.Run("list newest first and owner scoped", func(t *testing.T) {
		carol, err := store.CreateUser(ctx, &models.User{ExternalID: "carol@example.com"})
		require.NoError(t, err)
		for _, n := range []string{"a", "b", "c"} {
			_, err := store.CreateWorkflow(ctx, carol.ID, newWorkflow(n))
			require.NoError(t, err)
		}

		list, err := store.ListWorkflows(ctx, carol.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Name, list[1].Name, list[2].Name})

		empty, err := store.ListWorkflows(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("sparse update refreshes updated_at", func(t *testing.T) {
		created, err := store.CreateWorkflow(ctx, alice.ID, newWorkflow("patchme"))
		require.NoError(t, err)

		flowID := "remote-1"
		ok, err := store.UpdateWorkflow(ctx, alice.ID, created.ID, models.WorkflowPatch{LangflowFlowID: &flowID})
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.GetWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "patchme", got.Name)
		assert.Equal(t, "desc patchme", got.Description)
		require.NotNil(t, got.LangflowFlowID)
		assert.Equal(t, "remote-1", *got.LangflowFlowID)
		assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(created.CreatedAt))

		ok, err = store.UpdateWorkflow(ctx, alice.ID, created.ID, models.WorkflowPatch{})
		require.NoError(t, err)
		assert.True(t, ok)
		again, err := store.GetWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.True(t, again.UpdatedAt.After(got.UpdatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		created, err := store.CreateWorkflow(ctx, alice.ID, newWorkflow("gone"))
		require.NoError(t, err)

		ok, err := store.DeleteWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = store.GetWorkflow(ctx, alice.ID, created.ID)
		assert.True(t, apperr.IsNotFound(err))

		ok, err = store.DeleteWorkflow(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("users", func(t *testing.T) {
		again, err := store.CreateUser(ctx, &models.User{ExternalID: "alice@example.com", Username: "other"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, again.ID)

		byExt, err := store.GetUserByExternalID(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, byExt.ID)

		_, err = store.GetUser(ctx, "missing")
		assert.True(t, apperr.IsNotFound(err))
		_, err = store.GetUserByExternalID(ctx, "missing@example.com")
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("folder id first write wins", func(t *testing.T) {
		dave, err := store.CreateUser(ctx, &models.User{ExternalID: "dave@example.com"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]string, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = store.SetFolderID(ctx, dave.ID, string(rune('a'+i)))
			}(i)
		}
		wg.Wait()

		u, err := store.GetUser(ctx, dave.ID)
		require.NoError(t, err)
		require.True(t, u.HasFolder())
		for _, r := range results {
			assert.Equal(t, *u.FolderID, r)
		}

		_, err = store.SetFolderID(ctx, "missing", "x")
		assert.True(t, apperr.IsNotFound(err))
	})
}
