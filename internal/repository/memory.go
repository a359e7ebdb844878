package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store for development and tests.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*models.SavedWorkflow
	users     map[string]*models.User
	byExt     map[string]string
	seq       map[string]uint64 // insertion order breaks created_at ties
	next      uint64
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*models.SavedWorkflow),
		users:     make(map[string]*models.User),
		byExt:     make(map[string]string),
		seq:       make(map[string]uint64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) ListWorkflows(_ context.Context, ownerID string) ([]*models.SavedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.SavedWorkflow{}
	for _, w := range s.workflows {
		if w.OwnerID != ownerID {
			continue
		}
		c, err := copyWorkflow(w)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) CreateWorkflow(_ context.Context, ownerID string, in models.NewWorkflow) (*models.SavedWorkflow, error) {
	now := s.now()
	w := &models.SavedWorkflow{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         in.Name,
		Description:  in.Description,
		WorkflowJSON: in.WorkflowJSON,
		Explanation:  in.Explanation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, err := copyWorkflow(w)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.next++
	s.workflows[w.ID] = stored
	s.seq[w.ID] = s.next
	s.mu.Unlock()

	return copyWorkflow(stored)
}

func (s *MemoryStore) GetWorkflow(_ context.Context, ownerID, id string) (*models.SavedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok || w.OwnerID != ownerID {
		return nil, &apperr.NotFoundError{Resource: "workflow", ID: id}
	}
	return copyWorkflow(w)
}

func (s *MemoryStore) UpdateWorkflow(_ context.Context, ownerID, id string, patch models.WorkflowPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok || w.OwnerID != ownerID {
		return false, nil
	}
	updated, err := copyWorkflow(w)
	if err != nil {
		return false, err
	}
	patch.Apply(updated)
	if updated, err = copyWorkflow(updated); err != nil {
		return false, err
	}
	updated.UpdatedAt = s.now()
	s.workflows[id] = updated
	return true, nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, ownerID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok || w.OwnerID != ownerID {
		return false, nil
	}
	delete(s.workflows, id)
	delete(s.seq, id)
	return true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "user", ID: id}
	}
	return copyUser(u), nil
}

func (s *MemoryStore) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExt[externalID]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "user", ID: externalID}
	}
	return copyUser(s.users[id]), nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if u.ExternalID == "" {
		return nil, fmt.Errorf("create user: external id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byExt[u.ExternalID]; ok {
		return copyUser(s.users[id]), nil
	}
	stored := copyUser(u)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.users[stored.ID] = stored
	s.byExt[stored.ExternalID] = stored.ID
	return copyUser(stored), nil
}

func (s *MemoryStore) SetFolderID(_ context.Context, userID, folderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", &apperr.NotFoundError{Resource: "user", ID: userID}
	}
	if !u.HasFolder() {
		id := folderID
		u.FolderID = &id
	}
	u.UpdatedAt = s.now()
	return *u.FolderID, nil
}

func copyWorkflow(w *models.SavedWorkflow) (*models.SavedWorkflow, error) {
	c := *w
	g, err := w.WorkflowJSON.Clone()
	if err != nil {
		return nil, fmt.Errorf("copy workflow %s: %w", w.ID, err)
	}
	c.WorkflowJSON = *g
	if w.Explanation != nil {
		e := *w.Explanation
		e.Components = append([]models.ComponentRationale(nil), w.Explanation.Components...)
		c.Explanation = &e
	}
	if w.LangflowFlowID != nil {
		id := *w.LangflowFlowID
		c.LangflowFlowID = &id
	}
	return &c, nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.FolderID != nil {
		id := *u.FolderID
		c.FolderID = &id
	}
	return &c
}
