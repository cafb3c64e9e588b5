package service

import (
	"context"
	"sync"

	"taskspace/internal/domain"
	"taskspace/internal/repository"

	"github.com/rs/zerolog"
)

const DefaultWorkspaceListLimit = 50

// PrincipalSource exposes the currently authenticated user, nil when absent.
type PrincipalSource interface {
	CurrentUser() *domain.User
}

type DirectoryConfig struct {
	ListLimit     int
	CascadeDelete bool
}

// DirectorySnapshot is the observable state of a WorkspaceDirectory.
type DirectorySnapshot struct {
	Workspaces []domain.Workspace `json:"workspaces"`
	Current    *domain.Workspace  `json:"current"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
}

// WorkspaceDirectory owns the principal's workspaces and the current
// selection. Every principal ends up with at least one workspace.
type WorkspaceDirectory struct {
	repo      repository.WorkspaceRepository
	todoRepo  repository.TodoRepository
	principal PrincipalSource
	logger    zerolog.Logger
	cfg       DirectoryConfig

	mu         sync.RWMutex
	workspaces []domain.Workspace
	current    *domain.Workspace
	// epoch changes whenever the set is cleared; results of calls issued in
	// an older epoch are not applied.
	epoch    uint64
	inflight int
	lastErr  string

	onSelect listeners[func(prev, next *domain.Workspace)]
	onChange listeners[func()]
}

func NewWorkspaceDirectory(
	repo repository.WorkspaceRepository,
	todoRepo repository.TodoRepository,
	principal PrincipalSource,
	cfg DirectoryConfig,
	logger zerolog.Logger,
) *WorkspaceDirectory {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultWorkspaceListLimit
	}
	return &WorkspaceDirectory{
		repo:      repo,
		todoRepo:  todoRepo,
		principal: principal,
		cfg:       cfg,
		logger:    logger.With().Str("component", "workspaces").Logger(),
	}
}

// Refresh reloads the principal's workspaces, newest first, creating the
// default workspace when there are none. The first workspace is selected if
// nothing is selected yet. On failure the loaded set is kept and the error
// field is set.
func (d *WorkspaceDirectory) Refresh(ctx context.Context) error {
	user := d.principal.CurrentUser()
	if user == nil {
		return nil
	}

	epoch := d.begin()

	fetched, err := d.repo.ListByOwner(ctx, user.ID, repository.ListOptions{Limit: d.cfg.ListLimit})
	if err == nil && len(fetched) == 0 {
		var def *domain.Workspace
		def, err = d.repo.Create(ctx, domain.NewDefaultWorkspace(user.ID))
		if err == nil {
			d.logger.Info().Str("user_id", user.ID).Str("workspace_id", def.ID).Msg("created default workspace")
			fetched = []*domain.Workspace{def}
		}
	}

	if err != nil {
		opErr := newOpError(OpLoad, "workspaces", err)
		d.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to load workspaces")
		d.finish(epoch, opErr)
		return opErr
	}

	if !d.samePrincipal(user) {
		d.logger.Debug().Str("user_id", user.ID).Msg("discarding workspaces of a previous principal")
		d.finish(epoch, nil)
		return nil
	}

	d.mu.Lock()
	if d.epoch != epoch {
		d.inflight--
		d.mu.Unlock()
		d.notifyChange()
		return nil
	}
	prev := copyWorkspace(d.current)
	d.workspaces = derefWorkspaces(fetched)
	if d.current == nil {
		if len(d.workspaces) > 0 {
			d.current = copyWorkspace(&d.workspaces[0])
		}
	} else if i := d.indexLocked(d.current.ID); i >= 0 {
		d.current = copyWorkspace(&d.workspaces[i])
	}
	next := copyWorkspace(d.current)
	d.inflight--
	d.mu.Unlock()

	d.notifySelect(prev, next)
	d.notifyChange()
	return nil
}

// Create persists a workspace owned by the principal and prepends it. It
// becomes current only when the set was empty before the call.
func (d *WorkspaceDirectory) Create(ctx context.Context, req *domain.CreateWorkspaceRequest) (*domain.Workspace, error) {
	user := d.principal.CurrentUser()
	if user == nil {
		opErr := newOpError(OpCreate, "workspace", ErrNotAuthenticated)
		d.setError(opErr)
		return nil, opErr
	}

	d.mu.RLock()
	wasEmpty := len(d.workspaces) == 0
	d.mu.RUnlock()

	epoch := d.begin()

	created, err := d.repo.Create(ctx, &domain.Workspace{
		OwnerID:     user.ID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		opErr := newOpError(OpCreate, "workspace", err)
		d.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to create workspace")
		d.finish(epoch, opErr)
		return nil, opErr
	}

	var prev, next *domain.Workspace
	selected := false

	d.mu.Lock()
	if d.epoch == epoch {
		d.workspaces = append([]domain.Workspace{*created}, d.workspaces...)
		if wasEmpty {
			prev = copyWorkspace(d.current)
			d.current = copyWorkspace(created)
			next = copyWorkspace(d.current)
			selected = true
		}
	}
	d.inflight--
	d.mu.Unlock()

	if selected {
		d.notifySelect(prev, next)
	}
	d.notifyChange()
	return created, nil
}

// Update persists a partial update and replaces the workspace in the set. The
// current selection is refreshed when it is the updated workspace.
func (d *WorkspaceDirectory) Update(ctx context.Context, id string, req *domain.UpdateWorkspaceRequest) (*domain.Workspace, error) {
	user := d.principal.CurrentUser()
	if user == nil {
		opErr := newOpError(OpUpdate, "workspace", ErrNotAuthenticated)
		d.setError(opErr)
		return nil, opErr
	}

	epoch := d.begin()

	var updated *domain.Workspace
	_, err := d.authorize(ctx, id, user)
	if err == nil {
		updated, err = d.repo.Update(ctx, id, req)
	}
	if err != nil {
		opErr := newOpError(OpUpdate, "workspace", err)
		d.logger.Error().Err(err).Str("workspace_id", id).Msg("failed to update workspace")
		d.finish(epoch, opErr)
		return nil, opErr
	}

	d.mu.Lock()
	if d.epoch == epoch {
		if i := d.indexLocked(id); i >= 0 {
			d.workspaces[i] = *updated
		}
		if d.current != nil && d.current.ID == id {
			d.current = copyWorkspace(updated)
		}
	}
	d.inflight--
	d.mu.Unlock()

	d.notifyChange()
	return updated, nil
}

// Delete removes the workspace from the store and the set. When the current
// workspace is deleted the first remaining one becomes current, or none.
func (d *WorkspaceDirectory) Delete(ctx context.Context, id string) error {
	user := d.principal.CurrentUser()
	if user == nil {
		opErr := newOpError(OpDelete, "workspace", ErrNotAuthenticated)
		d.setError(opErr)
		return opErr
	}

	epoch := d.begin()

	stored, err := d.authorize(ctx, id, user)
	if err == nil {
		err = d.repo.Delete(ctx, id)
	}
	if err != nil {
		opErr := newOpError(OpDelete, "workspace", err)
		d.logger.Error().Err(err).Str("workspace_id", id).Msg("failed to delete workspace")
		d.finish(epoch, opErr)
		return opErr
	}

	var prev, next *domain.Workspace
	reselected := false

	d.mu.Lock()
	if d.epoch == epoch {
		if i := d.indexLocked(id); i >= 0 {
			d.workspaces = append(d.workspaces[:i:i], d.workspaces[i+1:]...)
		}
		if d.current != nil && d.current.ID == id {
			prev = copyWorkspace(d.current)
			d.current = nil
			if len(d.workspaces) > 0 {
				d.current = copyWorkspace(&d.workspaces[0])
			}
			next = copyWorkspace(d.current)
			reselected = true
		}
	}
	d.inflight--
	d.mu.Unlock()

	if reselected {
		d.notifySelect(prev, next)
	}
	d.notifyChange()

	d.cascade(ctx, stored.OwnerID, id)
	return nil
}

// Select changes the current workspace locally. nil clears the selection.
func (d *WorkspaceDirectory) Select(ws *domain.Workspace) {
	d.mu.Lock()
	prev := copyWorkspace(d.current)
	d.current = copyWorkspace(ws)
	next := copyWorkspace(d.current)
	d.mu.Unlock()

	d.notifySelect(prev, next)
	d.notifyChange()
}

// SelectByID selects the loaded workspace with the given id.
func (d *WorkspaceDirectory) SelectByID(id string) (*domain.Workspace, bool) {
	d.mu.RLock()
	i := d.indexLocked(id)
	var ws *domain.Workspace
	if i >= 0 {
		ws = copyWorkspace(&d.workspaces[i])
	}
	d.mu.RUnlock()

	if ws == nil {
		return nil, false
	}
	d.Select(ws)
	return ws, true
}

// Clear drops the set and the selection, e.g. after the principal left.
func (d *WorkspaceDirectory) Clear() {
	d.mu.Lock()
	d.epoch++
	prev := copyWorkspace(d.current)
	d.workspaces = nil
	d.current = nil
	d.lastErr = ""
	d.mu.Unlock()

	d.notifySelect(prev, nil)
	d.notifyChange()
}

func (d *WorkspaceDirectory) Workspaces() []domain.Workspace {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Workspace(nil), d.workspaces...)
}

func (d *WorkspaceDirectory) Current() *domain.Workspace {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyWorkspace(d.current)
}

func (d *WorkspaceDirectory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inflight > 0
}

// Err returns the last error message, empty when the last operation succeeded.
func (d *WorkspaceDirectory) Err() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

func (d *WorkspaceDirectory) Snapshot() DirectorySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DirectorySnapshot{
		Workspaces: append([]domain.Workspace{}, d.workspaces...),
		Current:    copyWorkspace(d.current),
		Loading:    d.inflight > 0,
		Error:      d.lastErr,
	}
}

// OnSelect registers fn to run whenever the current workspace id changes.
func (d *WorkspaceDirectory) OnSelect(fn func(prev, next *domain.Workspace)) func() {
	return d.onSelect.add(fn)
}

// OnChange registers fn to run after any observable state changed.
func (d *WorkspaceDirectory) OnChange(fn func()) func() {
	return d.onChange.add(fn)
}

func (d *WorkspaceDirectory) begin() uint64 {
	d.mu.Lock()
	d.inflight++
	d.lastErr = ""
	epoch := d.epoch
	d.mu.Unlock()

	d.notifyChange()
	return epoch
}

func (d *WorkspaceDirectory) finish(epoch uint64, err error) {
	d.mu.Lock()
	d.inflight--
	if err != nil && d.epoch == epoch {
		d.lastErr = err.Error()
	}
	d.mu.Unlock()

	d.notifyChange()
}

func (d *WorkspaceDirectory) setError(err error) {
	d.mu.Lock()
	d.lastErr = err.Error()
	d.mu.Unlock()

	d.notifyChange()
}

func (d *WorkspaceDirectory) samePrincipal(user *domain.User) bool {
	now := d.principal.CurrentUser()
	return now != nil && now.ID == user.ID
}

// authorize loads the stored workspace and checks that user owns it.
func (d *WorkspaceDirectory) authorize(ctx context.Context, id string, user *domain.User) (*domain.Workspace, error) {
	ws, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != user.ID {
		d.logger.Warn().Str("workspace_id", id).Str("user_id", user.ID).Msg("workspace owned by another user")
		return nil, ErrAccessDenied
	}
	return ws, nil
}

// cascade removes the todos of a deleted workspace. Failures are only logged:
// the workspace is already gone and leftover todos are never listed.
func (d *WorkspaceDirectory) cascade(ctx context.Context, ownerID, workspaceID string) {
	if !d.cfg.CascadeDelete || d.todoRepo == nil || ownerID == "" {
		return
	}

	n, err := d.todoRepo.DeleteByWorkspace(ctx, ownerID, workspaceID)
	if err != nil {
		d.logger.Warn().Err(err).Str("workspace_id", workspaceID).Int("deleted", n).Msg("failed to delete todos of workspace")
		return
	}
	d.logger.Debug().Str("workspace_id", workspaceID).Int("deleted", n).Msg("deleted todos of workspace")
}

func (d *WorkspaceDirectory) indexLocked(id string) int {
	for i := range d.workspaces {
		if d.workspaces[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *WorkspaceDirectory) notifySelect(prev, next *domain.Workspace) {
	if workspaceID(prev) == workspaceID(next) {
		return
	}
	for _, fn := range d.onSelect.snapshot() {
		fn(prev, next)
	}
}

func (d *WorkspaceDirectory) notifyChange() {
	for _, fn := range d.onChange.snapshot() {
		fn()
	}
}

func workspaceID(ws *domain.Workspace) string {
	if ws == nil {
		return ""
	}
	return ws.ID
}

func copyWorkspace(ws *domain.Workspace) *domain.Workspace {
	if ws == nil {
		return nil
	}
	c := *ws
	return &c
}

func derefWorkspaces(in []*domain.Workspace) []domain.Workspace {
	out := make([]domain.Workspace, 0, len(in))
	for _, ws := range in {
		if ws != nil {
			out = append(out, *ws)
		}
	}
	return out
}
