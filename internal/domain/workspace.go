package domain

import "time"

const (
	DefaultWorkspaceName        = "Personal Workspace"
	DefaultWorkspaceDescription = "Your default workspace for personal tasks"
	DefaultWorkspaceColor       = "#3B82F6"
)

// WorkspaceColors is the palette offered when creating a workspace.
// Colors outside the palette are accepted.
var WorkspaceColors = []string{
	"#3B82F6", // blue
	"#10B981", // green
	"#F59E0B", // yellow
	"#EF4444", // red
	"#8B5CF6", // purple
	"#06B6D4", // cyan
	"#F97316", // orange
	"#84CC16", // lime
	"#EC4899", // pink
	"#6B7280", // gray
}

type Workspace struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateWorkspaceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=50"`
	Description string `json:"description" validate:"max=200"`
	Color       string `json:"color" validate:"max=32"`
}

// UpdateWorkspaceRequest carries the mutable workspace fields only. Nil
// fields are left untouched.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1,max=50"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=200"`
	Color       *string `json:"color,omitempty" validate:"omitnil,max=32"`
}

// NewDefaultWorkspace builds the workspace every principal gets when none exist.
func NewDefaultWorkspace(ownerID string) *Workspace {
	return &Workspace{
		OwnerID:     ownerID,
		Name:        DefaultWorkspaceName,
		Description: DefaultWorkspaceDescription,
		Color:       DefaultWorkspaceColor,
		IsDefault:   true,
	}
}
