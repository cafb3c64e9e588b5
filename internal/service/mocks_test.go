package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"taskspace/internal/domain"
	"taskspace/internal/repository"

	"github.com/rs/zerolog"
)

var testLogger = zerolog.New(io.Discard)

type fakePrincipal struct {
	mu   sync.Mutex
	user *domain.User
}

func (p *fakePrincipal) CurrentUser() *domain.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

func (p *fakePrincipal) set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == "" {
		p.user = nil
		return
	}
	p.user = &domain.User{ID: id}
}

type fakeWorkspaces struct {
	mu sync.Mutex
	ws *domain.Workspace
}

func (f *fakeWorkspaces) Current() *domain.Workspace {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ws == nil {
		return nil
	}
	c := *f.ws
	return &c
}

func (f *fakeWorkspaces) set(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		f.ws = nil
		return
	}
	f.ws = &domain.Workspace{ID: id}
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t.IsZero() {
		c.t = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	c.t = c.t.Add(time.Second)
	return c.t
}

type mockWorkspaceRepo struct {
	mu         sync.Mutex
	clock      clock
	seq        int
	workspaces map[string]*domain.Workspace
	order      []string

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// onList runs inside ListByOwner before the result is returned.
	onList func()

	listCalls   int
	createCalls int
}

func newMockWorkspaceRepo() *mockWorkspaceRepo {
	return &mockWorkspaceRepo{workspaces: make(map[string]*domain.Workspace)}
}

// seed stores a workspace as if it had been created earlier.
func (m *mockWorkspaceRepo) seed(ownerID, name string) *domain.Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(&domain.Workspace{OwnerID: ownerID, Name: name, Color: domain.DefaultWorkspaceColor})
}

func (m *mockWorkspaceRepo) insertLocked(ws *domain.Workspace) *domain.Workspace {
	m.seq++
	stored := *ws
	stored.ID = fmt.Sprintf("workspace:%d", m.seq)
	stored.CreatedAt = m.clock.now()
	stored.UpdatedAt = stored.CreatedAt
	m.workspaces[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	out := stored
	return &out
}

func (m *mockWorkspaceRepo) Create(ctx context.Context, ws *domain.Workspace) (*domain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.insertLocked(ws), nil
}

func (m *mockWorkspaceRepo) Get(ctx context.Context, id string) (*domain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, repository.ErrWorkspaceNotFound
	}
	out := *ws
	return &out, nil
}

func (m *mockWorkspaceRepo) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]*domain.Workspace, error) {
	m.mu.Lock()
	m.listCalls++
	err := m.listErr
	var out []*domain.Workspace
	for i := len(m.order) - 1; i >= 0; i-- {
		ws, ok := m.workspaces[m.order[i]]
		if !ok || ws.OwnerID != ownerID {
			continue
		}
		c := *ws
		out = append(out, &c)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	hook := m.onList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mockWorkspaceRepo) Update(ctx context.Context, id string, req *domain.UpdateWorkspaceRequest) (*domain.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, repository.ErrWorkspaceNotFound
	}
	if req.Name != nil {
		ws.Name = *req.Name
	}
	if req.Description != nil {
		ws.Description = *req.Description
	}
	if req.Color != nil {
		ws.Color = *req.Color
	}
	ws.UpdatedAt = m.clock.now()
	out := *ws
	return &out, nil
}

func (m *mockWorkspaceRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.workspaces[id]; !ok {
		return repository.ErrWorkspaceNotFound
	}
	delete(m.workspaces, id)
	return nil
}

type mockTodoRepo struct {
	mu    sync.Mutex
	clock clock
	seq   int
	todos map[string]*domain.Todo
	order []string

	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error
	cascadeErr error

	onList   func()
	onCreate func()

	listCalls int
}

func newMockTodoRepo() *mockTodoRepo {
	return &mockTodoRepo{todos: make(map[string]*domain.Todo)}
}

func (m *mockTodoRepo) seed(ownerID, workspaceID, title string, completed bool, priority domain.Priority) *domain.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(&domain.Todo{
		OwnerID:     ownerID,
		WorkspaceID: workspaceID,
		Title:       title,
		Completed:   completed,
		Priority:    priority,
	})
}

func (m *mockTodoRepo) insertLocked(todo *domain.Todo) *domain.Todo {
	m.seq++
	stored := *todo
	stored.ID = fmt.Sprintf("todo:%d", m.seq)
	stored.CreatedAt = m.clock.now()
	stored.UpdatedAt = stored.CreatedAt
	m.todos[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	out := stored
	return &out
}

func (m *mockTodoRepo) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	m.mu.Lock()
	err := m.createErr
	var created *domain.Todo
	if err == nil {
		created = m.insertLocked(todo)
	}
	hook := m.onCreate
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return created, err
}

func (m *mockTodoRepo) Get(ctx context.Context, id string) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[id]
	if !ok {
		return nil, repository.ErrTodoNotFound
	}
	out := *todo
	return &out, nil
}

func (m *mockTodoRepo) List(ctx context.Context, q repository.TodoQuery, opts repository.ListOptions) ([]*domain.Todo, error) {
	m.mu.Lock()
	m.listCalls++
	err := m.listErr
	var out []*domain.Todo
	for i := len(m.order) - 1; i >= 0; i-- {
		todo, ok := m.todos[m.order[i]]
		if !ok || todo.OwnerID != q.OwnerID || todo.WorkspaceID != q.WorkspaceID {
			continue
		}
		if q.Completed != nil && todo.Completed != *q.Completed {
			continue
		}
		if q.Priority != nil && todo.Priority != *q.Priority {
			continue
		}
		c := *todo
		out = append(out, &c)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	hook := m.onList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mockTodoRepo) Update(ctx context.Context, id string, req *domain.UpdateTodoRequest) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	todo, ok := m.todos[id]
	if !ok {
		return nil, repository.ErrTodoNotFound
	}
	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}
	switch {
	case req.ClearDueDate:
		todo.DueDate = nil
	case req.DueDate != nil:
		d := *req.DueDate
		todo.DueDate = &d
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}
	todo.UpdatedAt = m.clock.now()
	out := *todo
	return &out, nil
}

func (m *mockTodoRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.todos[id]; !ok {
		return repository.ErrTodoNotFound
	}
	delete(m.todos, id)
	return nil
}

func (m *mockTodoRepo) DeleteByWorkspace(ctx context.Context, ownerID, workspaceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cascadeErr != nil {
		return 0, m.cascadeErr
	}
	n := 0
	for id, todo := range m.todos {
		if todo.OwnerID == ownerID && todo.WorkspaceID == workspaceID {
			delete(m.todos, id)
			n++
		}
	}
	return n, nil
}

// seedTodo stores todo as given apart from its id and timestamps.
func (m *mockTodoRepo) seedTodo(todo domain.Todo) *domain.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(&todo)
}

func (m *mockTodoRepo) stored(id string) (domain.Todo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[id]
	if !ok {
		return domain.Todo{}, false
	}
	return *todo, true
}

func (m *mockTodoRepo) countIn(workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, todo := range m.todos {
		if todo.WorkspaceID == workspaceID {
			n++
		}
	}
	return n
}
