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

type TodoCollection interface {
	Refresh(ctx context.Context) error
	Create(ctx context.Context, req *domain.CreateTodoRequest) (*domain.Todo, error)
	Update(ctx context.Context, id string, req *domain.UpdateTodoRequest) (*domain.Todo, error)
	Toggle(ctx context.Context, id string, completed bool) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
	Filter(f domain.TodoFilter) []domain.Todo
	Counts() domain.TodoCounts
	Snapshot() service.CollectionSnapshot
}

// TodoListResponse is the filtered view together with the state of the
// whole collection.
type TodoListResponse struct {
	Filter  domain.TodoFilter `json:"filter"`
	Todos   []domain.Todo     `json:"todos"`
	Counts  domain.TodoCounts `json:"counts"`
	Scope   service.Scope     `json:"scope"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

type TodoHandler struct {
	todos     TodoCollection
	validator *validator.Validate
}

func NewTodoHandler(todos TodoCollection) *TodoHandler {
	return &TodoHandler{
		todos:     todos,
		validator: validator.New(),
	}
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.TodoFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = domain.FilterAll
	}

	snap := h.todos.Snapshot()
	response.Success(w, TodoListResponse{
		Filter:  filter,
		Todos:   h.todos.Filter(filter),
		Counts:  snap.Counts,
		Scope:   snap.Scope,
		Loading: snap.Loading,
		Error:   snap.Error,
	})
}

func (h *TodoHandler) Counts(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.todos.Counts())
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	todo, err := h.todos.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, todo)
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	todoID := mux.Vars(r)["id"]

	var req domain.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	todo, err := h.todos.Update(r.Context(), todoID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, todo)
}

func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	todoID := mux.Vars(r)["id"]

	var req domain.ToggleTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	todo, err := h.todos.Toggle(r.Context(), todoID, req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	todoID := mux.Vars(r)["id"]

	if err := h.todos.Delete(r.Context(), todoID); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "todo deleted"})
}

func (h *TodoHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.todos.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, h.todos.Snapshot())
}
