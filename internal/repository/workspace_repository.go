package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskspace/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrWorkspaceExists   = errors.New("workspace already exists")
)

const defaultWorkspaceLimit = 50

type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error)
	Get(ctx context.Context, id string) (*domain.Workspace, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]*domain.Workspace, error)
	Update(ctx context.Context, id string, req *domain.UpdateWorkspaceRequest) (*domain.Workspace, error)
	Delete(ctx context.Context, id string) error
}

type CouchDBWorkspaceRepository struct {
	db  *kivik.DB
	now func() time.Time
}

type workspaceDoc struct {
	ID          string `json:"_id"`
	Rev         string `json:"_rev,omitempty"`
	DocType     string `json:"doc_type"`
	OwnerID     string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	IsDefault   bool   `json:"is_default"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func NewWorkspaceRepository(client *kivik.Client, dbName string) *CouchDBWorkspaceRepository {
	return &CouchDBWorkspaceRepository{
		db:  client.DB(dbName),
		now: time.Now,
	}
}

// Create stores a new workspace. The id and timestamps are assigned here and
// the stored representation is returned.
func (r *CouchDBWorkspaceRepository) Create(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error) {
	now := formatTime(r.now())
	doc := workspaceDoc{
		ID:          "workspace:" + uuid.New().String(),
		DocType:     docTypeWorkspace,
		OwnerID:     workspace.OwnerID,
		Name:        workspace.Name,
		Description: workspace.Description,
		Color:       workspace.Color,
		IsDefault:   workspace.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if statusOf(err) == http.StatusConflict {
			return nil, ErrWorkspaceExists
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return docToWorkspace(&doc)
}

func (r *CouchDBWorkspaceRepository) Get(ctx context.Context, id string) (*domain.Workspace, error) {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return docToWorkspace(doc)
}

// ListByOwner returns the owner's workspaces, newest first.
func (r *CouchDBWorkspaceRepository) ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]*domain.Workspace, error) {
	rows := r.db.Find(ctx, workspaceListQuery(ownerID, opts))
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var doc workspaceDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}

		ws, err := docToWorkspace(&doc)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}

	return workspaces, nil
}

func (r *CouchDBWorkspaceRepository) Update(ctx context.Context, id string, req *domain.UpdateWorkspaceRequest) (*domain.Workspace, error) {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	applyWorkspaceUpdate(doc, req)
	doc.UpdatedAt = formatTime(r.now())

	rev, err := r.db.Put(ctx, doc.ID, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	doc.Rev = rev

	return docToWorkspace(doc)
}

func (r *CouchDBWorkspaceRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, id, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	return nil
}

func (r *CouchDBWorkspaceRepository) getDoc(ctx context.Context, id string) (*workspaceDoc, error) {
	var doc workspaceDoc
	if err := r.db.Get(ctx, id).ScanDoc(&doc); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if doc.DocType != docTypeWorkspace {
		return nil, ErrWorkspaceNotFound
	}
	return &doc, nil
}

func workspaceListQuery(ownerID string, opts ListOptions) map[string]interface{} {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeWorkspace,
			"user_id":  ownerID,
		},
		"sort":      descendingSort("doc_type", "user_id", "created_at"),
		"use_index": []string{designDoc, "workspaces-by-owner"},
	}
	applyListOptions(query, opts, defaultWorkspaceLimit)
	return query
}

func applyWorkspaceUpdate(doc *workspaceDoc, req *domain.UpdateWorkspaceRequest) {
	if req == nil {
		return
	}
	if req.Name != nil {
		doc.Name = *req.Name
	}
	if req.Description != nil {
		doc.Description = *req.Description
	}
	if req.Color != nil {
		doc.Color = *req.Color
	}
}

func docToWorkspace(doc *workspaceDoc) (*domain.Workspace, error) {
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := parseTime(doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &domain.Workspace{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		Name:        doc.Name,
		Description: doc.Description,
		Color:       doc.Color,
		IsDefault:   doc.IsDefault,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
