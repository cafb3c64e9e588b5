package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"taskspace/internal/domain"
	"taskspace/internal/service"
	"taskspace/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type WorkspaceDirectory interface {
	Refresh(ctx context.Context) error
	Create(ctx context.Context, req *domain.CreateWorkspaceRequest) (*domain.Workspace, error)
	Update(ctx context.Context, id string, req *domain.UpdateWorkspaceRequest) (*domain.Workspace, error)
	Delete(ctx context.Context, id string) error
	SelectByID(id string) (*domain.Workspace, bool)
	Snapshot() service.DirectorySnapshot
}

type WorkspaceHandler struct {
	directory WorkspaceDirectory
	validator *validator.Validate
}

func NewWorkspaceHandler(directory WorkspaceDirectory) *WorkspaceHandler {
	return &WorkspaceHandler{
		directory: directory,
		validator: validator.New(),
	}
}

func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.directory.Snapshot())
}

func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if req.Color == "" {
		req.Color = domain.DefaultWorkspaceColor
	}

	workspace, err := h.directory.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, workspace)
}

func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["id"]

	var req domain.UpdateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	workspace, err := h.directory.Update(r.Context(), workspaceID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, workspace)
}

func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["id"]

	if err := h.directory.Delete(r.Context(), workspaceID); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "workspace deleted"})
}

func (h *WorkspaceHandler) Select(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["id"]

	workspace, ok := h.directory.SelectByID(workspaceID)
	if !ok {
		response.NotFound(w, "workspace not found")
		return
	}

	response.Success(w, workspace)
}

func (h *WorkspaceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, h.directory.Snapshot())
}
