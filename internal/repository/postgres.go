package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/pkg/models"
)

//go:embed schema.sql
var schema string

const workflowColumns = "id, user_id, name, description, workflow_json, explanation, langflow_flow_id, created_at, updated_at"

const userColumns = "id, external_id, username, folder_id, created_at, updated_at"

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ListWorkflows returns the owner's workflows, newest first.
func (s *PostgresStore) ListWorkflows(ctx context.Context, ownerID string) ([]*models.SavedWorkflow, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+workflowColumns+" FROM saved_workflows WHERE user_id = $1 ORDER BY created_at DESC, id",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := []*models.SavedWorkflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// CreateWorkflow stores a new workflow for ownerID.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, ownerID string, in models.NewWorkflow) (*models.SavedWorkflow, error) {
	graph, err := json.Marshal(in.WorkflowJSON)
	if err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	explanation, err := marshalNullable(in.Explanation)
	if err != nil {
		return nil, fmt.Errorf("encode explanation: %w", err)
	}

	row := s.db.QueryRow(ctx,
		"INSERT INTO saved_workflows (id, user_id, name, description, workflow_json, explanation) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+workflowColumns,
		uuid.NewString(), ownerID, in.Name, in.Description, graph, explanation)
	return scanWorkflow(row)
}

// GetWorkflow retrieves a workflow by id for ownerID.
func (s *PostgresStore) GetWorkflow(ctx context.Context, ownerID, id string) (*models.SavedWorkflow, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+workflowColumns+" FROM saved_workflows WHERE id = $1 AND user_id = $2",
		id, ownerID)
	w, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "workflow", ID: id}
	}
	return w, err
}

// UpdateWorkflow applies the set fields of patch.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, ownerID, id string, patch models.WorkflowPatch) (bool, error) {
	sets := []string{"updated_at = clock_timestamp()"}
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.WorkflowJSON != nil {
		raw, err := json.Marshal(patch.WorkflowJSON)
		if err != nil {
			return false, fmt.Errorf("encode workflow: %w", err)
		}
		set("workflow_json", raw)
	}
	if patch.Explanation != nil {
		raw, err := json.Marshal(patch.Explanation)
		if err != nil {
			return false, fmt.Errorf("encode explanation: %w", err)
		}
		set("explanation", raw)
	}
	if patch.LangflowFlowID != nil {
		set("langflow_flow_id", *patch.LangflowFlowID)
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf("UPDATE saved_workflows SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteWorkflow removes a workflow owned by ownerID.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, ownerID, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM saved_workflows WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetUser retrieves a user by local id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "user", ID: id}
	}
	return u, err
}

// GetUserByExternalID retrieves a user by identity provider id.
func (s *PostgresStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE external_id = $1", externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "user", ID: externalID}
	}
	return u, err
}

// CreateUser inserts u. A concurrent insert of the same external id yields
// the record that won.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO users (id, external_id, username, folder_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		 RETURNING `+userColumns,
		id, u.ExternalID, u.Username, u.FolderID)
	return scanUser(row)
}

// SetFolderID stores folderID when the user has none yet.
func (s *PostgresStore) SetFolderID(ctx context.Context, userID, folderID string) (string, error) {
	var current *string
	err := s.db.QueryRow(ctx,
		`UPDATE users SET folder_id = COALESCE(NULLIF(folder_id, ''), $2), updated_at = clock_timestamp()
		 WHERE id = $1 RETURNING folder_id`,
		userID, folderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &apperr.NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", nil
	}
	return *current, nil
}

func scanWorkflow(row pgx.Row) (*models.SavedWorkflow, error) {
	var (
		w           models.SavedWorkflow
		graph       []byte
		explanation []byte
	)
	err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Description, &graph, &explanation,
		&w.LangflowFlowID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(graph, &w.WorkflowJSON); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", w.ID, err)
	}
	if len(explanation) > 0 {
		w.Explanation = &models.WorkflowExplanation{}
		if err := json.Unmarshal(explanation, w.Explanation); err != nil {
			return nil, fmt.Errorf("decode explanation %s: %w", w.ID, err)
		}
	}
	return &w, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.FolderID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func marshalNullable(v *models.WorkflowExplanation) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
