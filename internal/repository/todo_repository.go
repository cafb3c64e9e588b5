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

var ErrTodoNotFound = errors.New("todo not found")

const (
	defaultTodoLimit = 100
	bulkDeletePage   = 200
)

// TodoQuery holds the equality filters of a todo listing. Owner and workspace
// are always applied; Completed and Priority only when set.
type TodoQuery struct {
	OwnerID     string
	WorkspaceID string
	Completed   *bool
	Priority    *domain.Priority
}

type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error)
	Get(ctx context.Context, id string) (*domain.Todo, error)
	List(ctx context.Context, q TodoQuery, opts ListOptions) ([]*domain.Todo, error)
	Update(ctx context.Context, id string, req *domain.UpdateTodoRequest) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
	DeleteByWorkspace(ctx context.Context, ownerID, workspaceID string) (int, error)
}

type CouchDBTodoRepository struct {
	db  *kivik.DB
	now func() time.Time
}

type todoDoc struct {
	ID          string `json:"_id"`
	Rev         string `json:"_rev,omitempty"`
	DocType     string `json:"doc_type"`
	OwnerID     string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type docRef struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev"`
	Deleted bool   `json:"_deleted,omitempty"`
}

func NewTodoRepository(client *kivik.Client, dbName string) *CouchDBTodoRepository {
	return &CouchDBTodoRepository{
		db:  client.DB(dbName),
		now: time.Now,
	}
}

func (r *CouchDBTodoRepository) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	now := formatTime(r.now())
	doc := todoToDoc(todo)
	doc.ID = "todo:" + uuid.New().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	return docToTodo(doc)
}

func (r *CouchDBTodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return docToTodo(doc)
}

// List returns the todos matching q, newest first.
func (r *CouchDBTodoRepository) List(ctx context.Context, q TodoQuery, opts ListOptions) ([]*domain.Todo, error) {
	rows := r.db.Find(ctx, todoListQuery(q, opts))
	defer rows.Close()

	var todos []*domain.Todo
	for rows.Next() {
		var doc todoDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}

		todo, err := docToTodo(&doc)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}

	return todos, nil
}

func (r *CouchDBTodoRepository) Update(ctx context.Context, id string, req *domain.UpdateTodoRequest) (*domain.Todo, error) {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	applyTodoUpdate(doc, req)
	doc.UpdatedAt = formatTime(r.now())

	rev, err := r.db.Put(ctx, doc.ID, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	doc.Rev = rev

	return docToTodo(doc)
}

func (r *CouchDBTodoRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, id, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	return nil
}

// DeleteByWorkspace removes every todo of the owner in workspaceID and
// returns how many were deleted.
func (r *CouchDBTodoRepository) DeleteByWorkspace(ctx context.Context, ownerID, workspaceID string) (int, error) {
	deleted := 0
	for {
		refs, err := r.findRefs(ctx, ownerID, workspaceID)
		if err != nil {
			return deleted, err
		}
		if len(refs) == 0 {
			return deleted, nil
		}

		docs := make([]interface{}, len(refs))
		for i, ref := range refs {
			ref.Deleted = true
			docs[i] = ref
		}

		results, err := r.db.BulkDocs(ctx, docs)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete todos: %w", err)
		}
		for _, res := range results {
			if res.Error != nil {
				return deleted, fmt.Errorf("failed to delete todo %s: %w", res.ID, res.Error)
			}
			deleted++
		}

		if len(refs) < bulkDeletePage {
			return deleted, nil
		}
	}
}

func (r *CouchDBTodoRepository) findRefs(ctx context.Context, ownerID, workspaceID string) ([]docRef, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":     docTypeTodo,
			"user_id":      ownerID,
			"workspace_id": workspaceID,
		},
		"fields": []string{"_id", "_rev"},
		"limit":  bulkDeletePage,
	}

	rows := r.db.Find(ctx, query)
	defer rows.Close()

	var refs []docRef
	for rows.Next() {
		var ref docRef
		if err := rows.ScanDoc(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}

	return refs, nil
}

func (r *CouchDBTodoRepository) getDoc(ctx context.Context, id string) (*todoDoc, error) {
	var doc todoDoc
	if err := r.db.Get(ctx, id).ScanDoc(&doc); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if doc.DocType != docTypeTodo {
		return nil, ErrTodoNotFound
	}
	return &doc, nil
}

func todoListQuery(q TodoQuery, opts ListOptions) map[string]interface{} {
	selector := map[string]interface{}{
		"doc_type":     docTypeTodo,
		"user_id":      q.OwnerID,
		"workspace_id": q.WorkspaceID,
	}
	if q.Completed != nil {
		selector["completed"] = *q.Completed
	}
	if q.Priority != nil {
		selector["priority"] = string(*q.Priority)
	}

	query := map[string]interface{}{
		"selector":  selector,
		"sort":      descendingSort("doc_type", "user_id", "workspace_id", "created_at"),
		"use_index": []string{designDoc, "todos-by-owner-workspace"},
	}
	applyListOptions(query, opts, defaultTodoLimit)
	return query
}

func applyTodoUpdate(doc *todoDoc, req *domain.UpdateTodoRequest) {
	if req == nil {
		return
	}
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Description != nil {
		doc.Description = *req.Description
	}
	if req.Priority != nil {
		doc.Priority = string(*req.Priority)
	}
	switch {
	case req.ClearDueDate:
		doc.DueDate = ""
	case req.DueDate != nil && !req.DueDate.IsZero():
		doc.DueDate = req.DueDate.String()
	}
	if req.Completed != nil {
		doc.Completed = *req.Completed
	}
}

func todoToDoc(todo *domain.Todo) *todoDoc {
	doc := &todoDoc{
		ID:          todo.ID,
		DocType:     docTypeTodo,
		OwnerID:     todo.OwnerID,
		WorkspaceID: todo.WorkspaceID,
		Title:       todo.Title,
		Description: todo.Description,
		Completed:   todo.Completed,
		Priority:    string(todo.Priority),
	}
	if todo.DueDate != nil && !todo.DueDate.IsZero() {
		doc.DueDate = todo.DueDate.String()
	}
	return doc
}

func docToTodo(doc *todoDoc) (*domain.Todo, error) {
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := parseTime(doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	todo := &domain.Todo{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		WorkspaceID: doc.WorkspaceID,
		Title:       doc.Title,
		Description: doc.Description,
		Completed:   doc.Completed,
		Priority:    domain.Priority(doc.Priority),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if doc.DueDate != "" {
		due, err := domain.ParseDate(doc.DueDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse due_date: %w", err)
		}
		todo.DueDate = &due
	}

	return todo, nil
}
