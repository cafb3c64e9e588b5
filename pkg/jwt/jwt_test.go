package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		expiration time.Duration
		wantErr    bool
	}{
		{name: "valid token", userID: "user-123", expiration: 15 * time.Minute},
		{name: "long expiration", userID: "user-789", expiration: 24 * time.Hour},
		{name: "missing user", userID: "", expiration: time.Minute, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.userID, "", tt.expiration, "test-secret")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
		})
	}
}

func TestValidateToken(t *testing.T) {
	secret := "validation-secret-key-32-chars"

	validToken, err := GenerateToken("u1", "u1@example.com", time.Hour, secret)
	require.NoError(t, err)
	expiredToken, err := GenerateToken("u1", "", -time.Hour, secret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{name: "valid token", token: validToken, secret: secret},
		{name: "expired token", token: expiredToken, secret: secret, wantErr: true},
		{name: "wrong secret", token: validToken, secret: "wrong-secret", wantErr: true},
		{name: "invalid format", token: "invalid.token.format", secret: secret, wantErr: true},
		{name: "empty token", token: "", secret: secret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UserID)
			assert.Equal(t, "u1@example.com", claims.Email)
		})
	}
}

func TestClaimsTimestamps(t *testing.T) {
	before := time.Now().Add(-time.Second)
	token, err := GenerateToken("u1", "", time.Hour, "secret")
	require.NoError(t, err)
	after := time.Now().Add(time.Second)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)

	assert.WithinRange(t, claims.IssuedAt.Time, before, after)
	assert.WithinRange(t, claims.ExpiresAt.Time, before.Add(time.Hour), after.Add(time.Hour))
}
