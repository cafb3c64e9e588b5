package domain

import "time"

// User is the authenticated principal on whose behalf state is loaded.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type LoginRequest struct {
	Token string `json:"token" validate:"required"`
}

type IssueTokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type IssueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
