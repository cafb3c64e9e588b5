package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"taskspace/internal/domain"
	"taskspace/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SessionStore interface {
	CurrentUser() *domain.User
	Login(token string) (*domain.User, error)
	Logout()
}

// TokenIssuer signs tokens that SessionStore.Login accepts.
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

type SessionHandler struct {
	session   SessionStore
	issuer    TokenIssuer
	validator *validator.Validate
}

// NewSessionHandler serves the session routes. issuer may be nil, which
// disables Issue.
func NewSessionHandler(session SessionStore, issuer TokenIssuer) *SessionHandler {
	return &SessionHandler{
		session:   session,
		issuer:    issuer,
		validator: validator.New(),
	}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.session.Login(req.Token)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	response.Success(w, user)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	response.Success(w, map[string]string{"message": "signed out"})
}

func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.session.CurrentUser()
	if user == nil {
		response.Unauthorized(w, "not signed in")
		return
	}
	response.Success(w, user)
}

// Issue hands out a signed token for a user id. It is only routed in
// development, where no identity provider issues tokens.
func (h *SessionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		response.NotFound(w, "token issuing disabled")
		return
	}

	var req domain.IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	token, expiresAt, err := h.issuer.Issue(req.UserID, req.Email)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.Created(w, domain.IssueTokenResponse{Token: token, ExpiresAt: expiresAt})
}
