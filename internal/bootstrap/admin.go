// Package bootstrap holds the one-time startup steps of the service.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"staffing/internal/errors"
	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AdminOptions struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdmin creates the configured administrator unless a user with that
// email already exists. An existing user is never modified. It reports
// whether a user was created.
func EnsureAdmin(ctx context.Context, users store.UserStore, opts AdminOptions, logger *zap.Logger) (bool, error) {
	email := models.NormalizeEmail(opts.Email)
	if email == "" {
		logger.Info("no admin email configured, skipping admin bootstrap")
		return false, nil
	}
	if strings.TrimSpace(opts.Password) == "" {
		return false, errors.Validation("admin password is required when ADMIN_EMAIL is set", nil).WithCode(errors.CodeMissingFields)
	}

	if _, err := users.GetUserByEmail(ctx, email); err == nil {
		logger.Debug("admin user already present", zap.String("email", email))
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, store.Translate(err, "user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Internal("hashing admin password", err)
	}

	name := opts.Name
	if name == "" {
		name = "Administrator"
	}
	created, err := users.EnsureUser(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         models.RoleAdmin,
		UserType:     models.UserTypeEmployee,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return false, store.Translate(err, "user")
	}
	if created {
		logger.Info("created admin user", zap.String("email", email))
	}
	return created, nil
}
