package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates such as Todo.DueDate.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the zero date as "".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Full timestamps are accepted and truncated to their date.
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		*d = NewDate(t.Year(), t.Month(), t.Day())
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Todo struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	DueDate     *Date     `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOverdue reports whether an open todo's due date lies before now.
func (t Todo) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && !t.DueDate.IsZero() && t.DueDate.Before(now)
}

type CreateTodoRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Priority    Priority `json:"priority" validate:"required,oneof=low medium high"`
	DueDate     *Date    `json:"due_date"`
	Completed   bool     `json:"completed"`
}

// UnmarshalJSON maps an empty or null due_date to no due date.
func (r *CreateTodoRequest) UnmarshalJSON(data []byte) error {
	type plain CreateTodoRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	if r.DueDate != nil && r.DueDate.IsZero() {
		r.DueDate = nil
	}
	return nil
}

// UpdateTodoRequest carries the mutable todo fields only; owner, workspace,
// id and timestamps cannot be expressed. Nil fields are left untouched.
// ClearDueDate removes the due date and wins over DueDate.
type UpdateTodoRequest struct {
	Title        *string   `json:"title,omitempty" validate:"omitnil,min=1,max=100"`
	Description  *string   `json:"description,omitempty" validate:"omitnil,max=500"`
	Priority     *Priority `json:"priority,omitempty" validate:"omitnil,oneof=low medium high"`
	DueDate      *Date     `json:"due_date,omitempty"`
	ClearDueDate bool      `json:"-"`
	Completed    *bool     `json:"completed,omitempty"`
}

// UnmarshalJSON treats "due_date": "" and "due_date": null as a request to
// clear the due date. An absent key leaves it untouched.
func (r *UpdateTodoRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateTodoRequest
	aux := struct {
		*plain
		DueDate json.RawMessage `json:"due_date"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.DueDate = nil
	r.ClearDueDate = false
	if len(aux.DueDate) == 0 {
		return nil
	}
	if string(aux.DueDate) == "null" {
		r.ClearDueDate = true
		return nil
	}

	var due Date
	if err := json.Unmarshal(aux.DueDate, &due); err != nil {
		return err
	}
	if due.IsZero() {
		r.ClearDueDate = true
		return nil
	}
	r.DueDate = &due
	return nil
}

type ToggleTodoRequest struct {
	Completed bool `json:"completed"`
}

// TodoFilter names a local view over the loaded todos.
type TodoFilter string

const (
	FilterAll       TodoFilter = "all"
	FilterCompleted TodoFilter = "completed"
	FilterPending   TodoFilter = "pending"
	FilterHigh      TodoFilter = "high"
	FilterMedium    TodoFilter = "medium"
	FilterLow       TodoFilter = "low"
)

// Match reports whether todo belongs to the view. Unknown filters match everything.
func (f TodoFilter) Match(todo Todo) bool {
	switch f {
	case FilterCompleted:
		return todo.Completed
	case FilterPending:
		return !todo.Completed
	case FilterHigh, FilterMedium, FilterLow:
		return todo.Priority == Priority(f)
	default:
		return true
	}
}

type TodoCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
}
