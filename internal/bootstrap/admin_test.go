package bootstrap

import (
	"context"
	"testing"

	"staffing/internal/errors"
	"staffing/internal/models"
	"staffing/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdminCreatesOnce(t *testing.T) {
	st := memory.New()
	logger := zaptest.NewLogger(t)
	opts := AdminOptions{Email: "Admin@Agency.test", Password: "s3cret", Name: "Root"}

	created, err := EnsureAdmin(context.Background(), st, opts, logger)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(context.Background(), st, AdminOptions{Email: opts.Email, Password: "other"}, logger)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := st.GetUserByEmail(context.Background(), "admin@agency.test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "Root", u.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")))
}

func TestEnsureAdminLeavesExistingUserAlone(t *testing.T) {
	st := memory.New()
	_, err := st.EnsureUser(context.Background(), &models.User{ID: "u1", Email: "admin@agency.test", Role: models.RoleStaff})
	require.NoError(t, err)

	created, err := EnsureAdmin(context.Background(), st, AdminOptions{Email: "admin@agency.test", Password: "pw"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, created)

	u, err := st.GetUserByEmail(context.Background(), "admin@agency.test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, u.Role)
}

func TestEnsureAdminConfig(t *testing.T) {
	st := memory.New()
	logger := zaptest.NewLogger(t)

	created, err := EnsureAdmin(context.Background(), st, AdminOptions{}, logger)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = EnsureAdmin(context.Background(), st, AdminOptions{Email: "admin@agency.test"}, logger)
	assert.True(t, errors.IsCode(err, errors.CodeMissingFields))
}
