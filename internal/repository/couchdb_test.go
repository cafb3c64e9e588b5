package repository

import (
	"sort"
	"testing"
	"time"

	"taskspace/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime_SortsLexicographically(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Second),
		base,
		base.Add(500 * time.Millisecond),
		base.Add(-time.Hour).In(time.FixedZone("UTC+3", 3*3600)),
	}

	formatted := make([]string, len(times))
	for i, ts := range times {
		formatted[i] = formatTime(ts)
	}
	sort.Strings(formatted)

	assert.Equal(t, []string{
		formatTime(base.Add(-time.Hour)),
		formatTime(base),
		formatTime(base.Add(500 * time.Millisecond)),
		formatTime(base.Add(time.Second)),
	}, formatted)

	parsed, err := parseTime(formatTime(base.Add(500 * time.Millisecond)))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(500*time.Millisecond)))
}

func TestApplyListOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     ListOptions
		wantLim  int
		wantSkip interface{}
	}{
		{name: "default limit", opts: ListOptions{}, wantLim: 50},
		{name: "explicit limit", opts: ListOptions{Limit: 10}, wantLim: 10},
		{name: "skip", opts: ListOptions{Limit: 10, Skip: 20}, wantLim: 10, wantSkip: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := map[string]interface{}{}
			applyListOptions(query, tt.opts, 50)

			assert.Equal(t, tt.wantLim, query["limit"])
			assert.Equal(t, tt.wantSkip, query["skip"])
		})
	}
}

func TestWorkspaceListQuery(t *testing.T) {
	query := workspaceListQuery("u1", ListOptions{})

	assert.Equal(t, map[string]interface{}{
		"doc_type": docTypeWorkspace,
		"user_id":  "u1",
	}, query["selector"])
	assert.Equal(t, []map[string]string{
		{"doc_type": "desc"},
		{"user_id": "desc"},
		{"created_at": "desc"},
	}, query["sort"])
	assert.Equal(t, defaultWorkspaceLimit, query["limit"])
}

func TestTodoListQuery(t *testing.T) {
	completed := true
	high := domain.PriorityHigh

	tests := []struct {
		name string
		q    TodoQuery
		want map[string]interface{}
	}{
		{
			name: "scope only",
			q:    TodoQuery{OwnerID: "u1", WorkspaceID: "w1"},
			want: map[string]interface{}{
				"doc_type":     docTypeTodo,
				"user_id":      "u1",
				"workspace_id": "w1",
			},
		},
		{
			name: "status and priority",
			q:    TodoQuery{OwnerID: "u1", WorkspaceID: "w1", Completed: &completed, Priority: &high},
			want: map[string]interface{}{
				"doc_type":     docTypeTodo,
				"user_id":      "u1",
				"workspace_id": "w1",
				"completed":    true,
				"priority":     "high",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := todoListQuery(tt.q, ListOptions{})

			assert.Equal(t, tt.want, query["selector"])
			assert.Equal(t, defaultTodoLimit, query["limit"])
			assert.Len(t, query["sort"], 4)
		})
	}
}

func TestTodoDocConversion(t *testing.T) {
	due := domain.NewDate(2024, 12, 24)
	doc := todoToDoc(&domain.Todo{
		OwnerID:     "u1",
		WorkspaceID: "w1",
		Title:       "wrap gifts",
		Priority:    domain.PriorityMedium,
		DueDate:     &due,
	})

	assert.Equal(t, docTypeTodo, doc.DocType)
	assert.Equal(t, "2024-12-24", doc.DueDate)

	now := formatTime(time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC))
	doc.ID = "todo:1"
	doc.CreatedAt = now
	doc.UpdatedAt = now

	todo, err := docToTodo(doc)
	require.NoError(t, err)
	assert.Equal(t, "todo:1", todo.ID)
	assert.Equal(t, "w1", todo.WorkspaceID)
	require.NotNil(t, todo.DueDate)
	assert.Equal(t, due, *todo.DueDate)

	doc.DueDate = ""
	todo, err = docToTodo(doc)
	require.NoError(t, err)
	assert.Nil(t, todo.DueDate)

	doc.CreatedAt = "yesterday"
	_, err = docToTodo(doc)
	assert.Error(t, err)
}

func TestApplyTodoUpdate(t *testing.T) {
	doc := &todoDoc{Title: "a", Description: "keep", Priority: "low", Completed: false}
	completed := true
	due := domain.NewDate(2025, 1, 2)

	applyTodoUpdate(doc, &domain.UpdateTodoRequest{Completed: &completed, DueDate: &due})

	assert.Equal(t, "a", doc.Title)
	assert.Equal(t, "keep", doc.Description)
	assert.Equal(t, "low", doc.Priority)
	assert.True(t, doc.Completed)
	assert.Equal(t, "2025-01-02", doc.DueDate)

	title := "b"
	applyTodoUpdate(doc, &domain.UpdateTodoRequest{Title: &title})
	assert.Equal(t, "2025-01-02", doc.DueDate)

	applyTodoUpdate(doc, &domain.UpdateTodoRequest{ClearDueDate: true})
	assert.Empty(t, doc.DueDate)
}

func TestTodoToDoc_ZeroDueDate(t *testing.T) {
	doc := todoToDoc(&domain.Todo{Title: "x", Priority: domain.PriorityLow, DueDate: &domain.Date{}})
	assert.Empty(t, doc.DueDate)
}

func TestApplyWorkspaceUpdate(t *testing.T) {
	doc := &workspaceDoc{Name: "Work", Description: "desc", Color: "#3B82F6", IsDefault: true}
	name := "Office"

	applyWorkspaceUpdate(doc, &domain.UpdateWorkspaceRequest{Name: &name})

	assert.Equal(t, "Office", doc.Name)
	assert.Equal(t, "desc", doc.Description)
	assert.Equal(t, "#3B82F6", doc.Color)
	assert.True(t, doc.IsDefault)
}
