package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type stubAuthUsers struct {
	byEmail   map[string]*models.User
	lastLogin map[string]time.Time
}

func (s *stubAuthUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubAuthUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthUsers) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if s.lastLogin == nil {
		s.lastLogin = map[string]time.Time{}
	}
	s.lastLogin[id] = ts
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *stubAuthUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &stubAuthUsers{byEmail: map[string]*models.User{
		"member@example.com": {
			ID:           "member-1",
			Email:        "member@example.com",
			PasswordHash: string(hash),
			FullName:     "Member One",
			Role:         models.RoleBasicaClases,
		},
	}}
	return NewAuthService(users, nil, nil, "test-secret", time.Hour), users
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, users := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "member@example.com",
		Password: "open-sesame",
	})
	require.NoError(t, err)
	assert.Equal(t, "member-1", res.User.ID)
	assert.Equal(t, models.RoleBasicaClases, res.User.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.NotEmpty(t, users.lastLogin["member-1"])

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "member-1", claims.UserID)
	assert.Equal(t, models.RoleBasicaClases, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "member@example.com",
		Password: "not-the-password",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "anything",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&stubAuthUsers{byEmail: map[string]*models.User{}}, nil, nil, "different-secret", time.Hour)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "member@example.com",
		Password: "open-sesame",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(res.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
