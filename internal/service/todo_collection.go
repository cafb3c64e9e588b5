package service

import (
	"context"
	"sync"
	"time"

	"taskspace/internal/domain"
	"taskspace/internal/repository"

	"github.com/rs/zerolog"
)

const DefaultTodoListLimit = 100

// WorkspaceSource exposes the current workspace, nil when none is selected.
type WorkspaceSource interface {
	Current() *domain.Workspace
}

// Scope is the (principal, workspace) pair the loaded todos belong to.
type Scope struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

func (s Scope) complete() bool {
	return s.UserID != "" && s.WorkspaceID != ""
}

// CollectionSnapshot is the observable state of a TodoCollection.
type CollectionSnapshot struct {
	Scope   Scope             `json:"scope"`
	Todos   []domain.Todo     `json:"todos"`
	Counts  domain.TodoCounts `json:"counts"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

// TodoCollection holds the todos of the current principal in the current
// workspace. Mutations apply the store's response locally instead of
// reloading.
type TodoCollection struct {
	repo       repository.TodoRepository
	principal  PrincipalSource
	workspaces WorkspaceSource
	logger     zerolog.Logger
	listLimit  int
	now        func() time.Time

	mu    sync.RWMutex
	todos []domain.Todo
	scope Scope
	// gen identifies the latest refresh; older refreshes drop their results.
	gen      uint64
	inflight int
	lastErr  string

	onChange listeners[func()]
}

func NewTodoCollection(
	repo repository.TodoRepository,
	principal PrincipalSource,
	workspaces WorkspaceSource,
	listLimit int,
	logger zerolog.Logger,
) *TodoCollection {
	if listLimit <= 0 {
		listLimit = DefaultTodoListLimit
	}
	return &TodoCollection{
		repo:       repo,
		principal:  principal,
		workspaces: workspaces,
		listLimit:  listLimit,
		now:        time.Now,
		logger:     logger.With().Str("component", "todos").Logger(),
	}
}

// SetClock replaces the time source used to count overdue todos.
func (c *TodoCollection) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Refresh replaces the loaded todos with the newest todos of the current
// scope. Without a principal or a current workspace the set is cleared.
// A response is dropped when the scope changed or a newer refresh was issued
// while it was in flight.
func (c *TodoCollection) Refresh(ctx context.Context) error {
	scope := c.currentScope()
	if !scope.complete() {
		c.Clear()
		return nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.inflight++
	c.lastErr = ""
	c.mu.Unlock()
	c.notifyChange()

	fetched, err := c.repo.List(ctx, repository.TodoQuery{
		OwnerID:     scope.UserID,
		WorkspaceID: scope.WorkspaceID,
	}, repository.ListOptions{Limit: c.listLimit})

	stale := c.currentScope() != scope
	var opErr *OpError
	if err != nil {
		opErr = newOpError(OpLoad, "todos", err)
	}

	c.mu.Lock()
	c.inflight--
	if gen != c.gen {
		stale = true
	}
	switch {
	case stale:
	case opErr != nil:
		c.lastErr = opErr.Error()
	default:
		c.todos = derefTodos(fetched)
		c.scope = scope
	}
	c.mu.Unlock()
	c.notifyChange()

	if stale {
		c.logger.Debug().Str("workspace_id", scope.WorkspaceID).Msg("dropping todos of a stale scope")
		return nil
	}
	if opErr != nil {
		c.logger.Error().Err(err).Str("user_id", scope.UserID).Str("workspace_id", scope.WorkspaceID).Msg("failed to load todos")
		return opErr
	}
	return nil
}

// Create persists a todo in the current scope and prepends the stored todo.
func (c *TodoCollection) Create(ctx context.Context, req *domain.CreateTodoRequest) (*domain.Todo, error) {
	scope := c.currentScope()
	if !scope.complete() {
		opErr := newOpError(OpCreate, "todo", ErrNoWorkspace)
		c.setError(opErr)
		return nil, opErr
	}

	c.begin()

	created, err := c.repo.Create(ctx, &domain.Todo{
		OwnerID:     scope.UserID,
		WorkspaceID: scope.WorkspaceID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    req.Priority,
		DueDate:     dueDate(req.DueDate),
	})
	if err != nil {
		opErr := newOpError(OpCreate, "todo", err)
		c.logger.Error().Err(err).Str("workspace_id", scope.WorkspaceID).Msg("failed to create todo")
		c.end(opErr)
		return nil, opErr
	}

	// The scope may have moved on while the call was in flight; the todo then
	// belongs to a set that is no longer loaded.
	inScope := c.currentScope() == scope

	c.mu.Lock()
	if inScope && created.OwnerID == scope.UserID && created.WorkspaceID == scope.WorkspaceID {
		c.todos = append([]domain.Todo{*created}, c.todos...)
	}
	c.mu.Unlock()

	c.end(nil)
	return created, nil
}

// Update persists a partial update and replaces the loaded todo with the
// stored representation.
func (c *TodoCollection) Update(ctx context.Context, id string, req *domain.UpdateTodoRequest) (*domain.Todo, error) {
	return c.update(ctx, id, req, "failed to update todo")
}

// Toggle sets the completion flag of a todo and nothing else.
func (c *TodoCollection) Toggle(ctx context.Context, id string, completed bool) (*domain.Todo, error) {
	return c.update(ctx, id, &domain.UpdateTodoRequest{Completed: &completed}, "failed to toggle todo")
}

func (c *TodoCollection) update(ctx context.Context, id string, req *domain.UpdateTodoRequest, msg string) (*domain.Todo, error) {
	scope := c.currentScope()
	if !scope.complete() {
		opErr := newOpError(OpUpdate, "todo", ErrNoWorkspace)
		c.setError(opErr)
		return nil, opErr
	}

	c.begin()

	var updated *domain.Todo
	err := c.authorize(ctx, id, scope)
	if err == nil {
		updated, err = c.repo.Update(ctx, id, req)
	}
	if err != nil {
		opErr := newOpError(OpUpdate, "todo", err)
		c.logger.Error().Err(err).Str("todo_id", id).Msg(msg)
		c.end(opErr)
		return nil, opErr
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.todos[i] = *updated
	}
	c.mu.Unlock()

	c.end(nil)
	return updated, nil
}

// Delete removes the todo from the store and from the loaded set.
func (c *TodoCollection) Delete(ctx context.Context, id string) error {
	scope := c.currentScope()
	if !scope.complete() {
		opErr := newOpError(OpDelete, "todo", ErrNoWorkspace)
		c.setError(opErr)
		return opErr
	}

	c.begin()

	err := c.authorize(ctx, id, scope)
	if err == nil {
		err = c.repo.Delete(ctx, id)
	}
	if err != nil {
		opErr := newOpError(OpDelete, "todo", err)
		c.logger.Error().Err(err).Str("todo_id", id).Msg("failed to delete todo")
		c.end(opErr)
		return opErr
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.todos = append(c.todos[:i:i], c.todos[i+1:]...)
	}
	c.mu.Unlock()

	c.end(nil)
	return nil
}

// Filter returns the loaded todos matching f without touching the store.
// Unknown filters return every todo.
func (c *TodoCollection) Filter(f domain.TodoFilter) []domain.Todo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Todo, 0, len(c.todos))
	for _, todo := range c.todos {
		if f.Match(todo) {
			out = append(out, todo)
		}
	}
	return out
}

func (c *TodoCollection) Counts() domain.TodoCounts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return countTodos(c.todos, c.now())
}

// Clear empties the set and invalidates refreshes in flight.
func (c *TodoCollection) Clear() {
	c.mu.Lock()
	c.gen++
	c.todos = nil
	c.scope = Scope{}
	c.lastErr = ""
	c.mu.Unlock()

	c.notifyChange()
}

func (c *TodoCollection) Todos() []domain.Todo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Todo(nil), c.todos...)
}

// Scope returns the scope of the loaded set, zero when nothing is loaded.
func (c *TodoCollection) Scope() Scope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scope
}

func (c *TodoCollection) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

func (c *TodoCollection) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *TodoCollection) Snapshot() CollectionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CollectionSnapshot{
		Scope:   c.scope,
		Todos:   append([]domain.Todo{}, c.todos...),
		Counts:  countTodos(c.todos, c.now()),
		Loading: c.inflight > 0,
		Error:   c.lastErr,
	}
}

// OnChange registers fn to run after any observable state changed.
func (c *TodoCollection) OnChange(fn func()) func() {
	return c.onChange.add(fn)
}

func (c *TodoCollection) currentScope() Scope {
	var s Scope
	if user := c.principal.CurrentUser(); user != nil {
		s.UserID = user.ID
	}
	if ws := c.workspaces.Current(); ws != nil {
		s.WorkspaceID = ws.ID
	}
	return s
}

// authorize checks that the stored todo belongs to scope.
func (c *TodoCollection) authorize(ctx context.Context, id string, scope Scope) error {
	todo, err := c.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if todo.OwnerID != scope.UserID || todo.WorkspaceID != scope.WorkspaceID {
		c.logger.Warn().Str("todo_id", id).Str("user_id", scope.UserID).Msg("todo outside the current scope")
		return ErrAccessDenied
	}
	return nil
}

func (c *TodoCollection) begin() {
	c.mu.Lock()
	c.inflight++
	c.lastErr = ""
	c.mu.Unlock()

	c.notifyChange()
}

func (c *TodoCollection) end(err error) {
	c.mu.Lock()
	c.inflight--
	if err != nil {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()

	c.notifyChange()
}

func (c *TodoCollection) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()

	c.notifyChange()
}

func (c *TodoCollection) indexLocked(id string) int {
	for i := range c.todos {
		if c.todos[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *TodoCollection) notifyChange() {
	for _, fn := range c.onChange.snapshot() {
		fn()
	}
}

func countTodos(todos []domain.Todo, now time.Time) domain.TodoCounts {
	counts := domain.TodoCounts{Total: len(todos)}
	for _, todo := range todos {
		if todo.Completed {
			counts.Completed++
		} else {
			counts.Pending++
		}
		if todo.IsOverdue(now) {
			counts.Overdue++
		}
	}
	return counts
}

func derefTodos(in []*domain.Todo) []domain.Todo {
	out := make([]domain.Todo, 0, len(in))
	for _, todo := range in {
		if todo != nil {
			out = append(out, *todo)
		}
	}
	return out
}

func dueDate(d *domain.Date) *domain.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}
