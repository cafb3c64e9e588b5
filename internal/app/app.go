// Package app connects the session, the workspace directory and the todo
// collection so that state loads in order: principal, then workspaces, then
// todos of the current workspace.
package app

import (
	"context"

	"taskspace/internal/domain"
	"taskspace/internal/service"
	"taskspace/internal/session"

	"github.com/rs/zerolog"
)

type App struct {
	Session    *session.Session
	Workspaces *service.WorkspaceDirectory
	Todos      *service.TodoCollection

	ctx    context.Context
	logger zerolog.Logger
	unbind []func()
}

// New subscribes the directory and the collection to their dependencies.
// ctx bounds the store calls of reloads triggered by those subscriptions.
func New(ctx context.Context, sess *session.Session, dir *service.WorkspaceDirectory, todos *service.TodoCollection, logger zerolog.Logger) *App {
	a := &App{
		Session:    sess,
		Workspaces: dir,
		Todos:      todos,
		ctx:        ctx,
		logger:     logger.With().Str("component", "app").Logger(),
	}

	// The collection clears first so no reload for the previous principal's
	// workspace is issued; the directory's selection change then drives the
	// single reload for the new scope.
	a.unbind = append(a.unbind,
		sess.Subscribe(a.onPrincipalForTodos),
		sess.Subscribe(a.onPrincipalForWorkspaces),
		dir.OnSelect(a.onWorkspaceSelected),
	)

	if sess.CurrentUser() != nil {
		a.onPrincipalForWorkspaces(nil, sess.CurrentUser())
	}

	return a
}

// Close removes every subscription registered by New.
func (a *App) Close() {
	for _, fn := range a.unbind {
		fn()
	}
	a.unbind = nil
}

func (a *App) onPrincipalForTodos(prev, next *domain.User) {
	a.Todos.Clear()
}

func (a *App) onPrincipalForWorkspaces(prev, next *domain.User) {
	if prev != nil {
		a.Workspaces.Clear()
	}
	if next == nil {
		return
	}
	if err := a.Workspaces.Refresh(a.ctx); err != nil {
		a.logger.Warn().Err(err).Str("user_id", next.ID).Msg("workspace reload failed")
	}
}

func (a *App) onWorkspaceSelected(prev, next *domain.Workspace) {
	if err := a.Todos.Refresh(a.ctx); err != nil {
		a.logger.Warn().Err(err).Msg("todo reload failed")
	}
}
