package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/repository"
	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
	"flowsmith/backend/pkg/models"
)

const starterName = "Starter Chat"

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the development user and a starter workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DB.Driver == "memory" {
				return errors.New("seed needs a persistent database; db.driver is memory")
			}
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, a.cfg.DSN())
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			store := repository.NewPostgresStore(pool)
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return seed(ctx, a, store)
		},
	}
}

func seed(ctx context.Context, a *app, store repository.Store) error {
	// 1. Ensure the development user exists
	user, err := store.CreateUser(ctx, &models.User{ExternalID: auth.DevIdentity, Username: "dev"})
	if err != nil {
		return fmt.Errorf("create dev user: %w", err)
	}
	a.logger.Info("Dev user ready", "id", user.ID, "external_id", user.ExternalID)

	// 2. Skip the starter workflow when it is already there
	existing, err := store.ListWorkflows(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}
	for _, w := range existing {
		if w.Name == starterName {
			a.logger.Info("Skipping existing workflow", "name", w.Name, "id", w.ID)
			return nil
		}
	}

	// 3. Create the starter workflow
	g, err := starterGraph()
	if err != nil {
		return err
	}
	w, err := store.CreateWorkflow(ctx, user.ID, models.NewWorkflow{
		Name:         g.Name,
		Description:  g.Description,
		WorkflowJSON: *g,
		Explanation: &models.WorkflowExplanation{
			Overview: "A plain chat loop around an OpenAI model.",
			Components: []models.ComponentRationale{
				{Name: "Chat Input", Type: "ChatInput", Purpose: "Receives the user's message"},
				{Name: "OpenAI", Type: "OpenAIModel", Purpose: "Answers the message", Configuration: "set api_key before running"},
				{Name: "Chat Output", Type: "ChatOutput", Purpose: "Shows the answer"},
			},
			DataFlow:       "Chat Input -> OpenAI -> Chat Output",
			ExpectedOutput: "The model's reply in the Playground.",
		},
	})
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	a.logger.Info("Seeded workflow", "name", w.Name, "id", w.ID)
	return nil
}

// starterGraph builds ChatInput -> OpenAIModel -> ChatOutput, hydrated from
// the catalog and laid out.
func starterGraph() (*flowgraph.FlowGraph, error) {
	cat := catalog.Default()
	g := &flowgraph.FlowGraph{
		Name:        starterName,
		Description: "Chat with an OpenAI model.",
		Data: flowgraph.GraphData{
			Nodes: []flowgraph.Node{
				{Data: flowgraph.NodeData{Type: "ChatInput"}},
				{Data: flowgraph.NodeData{Type: "OpenAIModel"}},
				{Data: flowgraph.NodeData{Type: "ChatOutput"}},
			},
		},
	}
	if err := flowgraph.Normalize(g, flowgraph.WithCatalog(cat)); err != nil {
		return nil, err
	}
	in, model, out := g.Data.Nodes[0].ID, g.Data.Nodes[1].ID, g.Data.Nodes[2].ID

	links := []struct {
		src flowgraph.SourceHandle
		tgt flowgraph.TargetHandle
	}{
		{
			flowgraph.SourceHandle{DataType: "ChatInput", ID: in, Name: "message", OutputTypes: []string{flowgraph.TypeMessage}},
			flowgraph.TargetHandle{FieldName: "input_value", ID: model, InputTypes: []string{flowgraph.TypeMessage}, Type: "str"},
		},
		{
			flowgraph.SourceHandle{DataType: "OpenAIModel", ID: model, Name: "text_output", OutputTypes: []string{flowgraph.TypeMessage}},
			flowgraph.TargetHandle{FieldName: "input_value", ID: out, InputTypes: []string{flowgraph.TypeMessage, flowgraph.TypeData}, Type: "str"},
		},
	}
	for _, l := range links {
		e, err := flowgraph.Connect(l.src, l.tgt)
		if err != nil {
			return nil, err
		}
		g.Data.Edges = append(g.Data.Edges, e)
	}
	// Normalize placed the nodes before any edge existed.
	for i := range g.Data.Nodes {
		g.Data.Nodes[i].Position = nil
	}
	flowgraph.Layout(g)

	if errs := flowgraph.Validate(g, flowgraph.WithCatalog(cat)); len(errs) > 0 {
		return nil, errs
	}
	return g, nil
}
