package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pantry/internal/apperror"
)

func newTestAuthService(t *testing.T, repos *fakeRepos) *AuthService {
	t.Helper()
	return NewAuthService(repos.users, newTestTokens(t), newTestPasswords(), newTestLogger())
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_NewUser(t *testing.T) {
	repos := newFakeRepos()
	svc := newTestAuthService(t, repos)

	result, err := svc.Register(context.Background(), "  alice ", "s3cret", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, result.User)

	assert.Equal(t, "alice", result.User.Name())
	assert.Equal(t, int64(1), result.User.ID())
	assert.False(t, result.User.IsAdmin(), "registration never grants admin")
	assert.NotEqual(t, "s3cret", result.User.PasswordHash())
	assert.NotEmpty(t, result.Token)

	id, err := svc.tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID(), id.UserID)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		confirm  string
		field    string
	}{
		{name: "empty name", user: " ", password: "pw", confirm: "pw", field: "name"},
		{name: "empty password", user: "bob", password: "", confirm: "", field: "password"},
		{name: "confirmation mismatch", user: "bob", password: "pw", confirm: "pW", field: "confirm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := newFakeRepos()
			svc := newTestAuthService(t, repos)

			_, err := svc.Register(context.Background(), tt.user, tt.password, tt.confirm)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, repos.users.rows, "nothing saved")
		})
	}
}

func TestRegister_NameTaken(t *testing.T) {
	repos := newFakeRepos()
	seedUser(t, repos, "alice")
	svc := newTestAuthService(t, repos)

	_, err := svc.Register(context.Background(), "alice", "pw", "pw")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestRegister_RepositoryError(t *testing.T) {
	repos := newFakeRepos()
	repos.users.saveErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repos)

	_, err := svc.Register(context.Background(), "alice", "pw", "pw")
	assert.Error(t, err)
}

// =========================================================================
// Login / Logout TESTS
// =========================================================================

func TestLogin(t *testing.T) {
	repos := newFakeRepos()
	svc := newTestAuthService(t, repos)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "s3cret", "s3cret")
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		result, err := svc.Login(ctx, "alice", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "alice", result.User.Name())
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice", "nope")
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("unknown name gives the same error", func(t *testing.T) {
		_, err := svc.Login(ctx, "mallory", "s3cret")
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestLogout_RevokesToken(t *testing.T) {
	repos := newFakeRepos()
	svc := newTestAuthService(t, repos)

	result, err := svc.Register(context.Background(), "alice", "pw", "pw")
	require.NoError(t, err)
	id, err := svc.tokens.Validate(result.Token)
	require.NoError(t, err)

	svc.Logout(id)

	_, err = svc.tokens.Validate(result.Token)
	assert.Error(t, err)
}

// =========================================================================
// GetUser TESTS
// =========================================================================

func TestGetUser(t *testing.T) {
	repos := newFakeRepos()
	alice := seedUser(t, repos, "alice")
	svc := newTestAuthService(t, repos)

	got, err := svc.GetUser(context.Background(), alice.ID())
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = svc.GetUser(context.Background(), 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
