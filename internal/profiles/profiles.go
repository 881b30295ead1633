// Package profiles reads candidate enrichment data from the profile store.
package profiles

import (
	"context"
	stderrors "errors"

	"staffing/common/telemetry"
	"staffing/internal/errors"
	"staffing/internal/models"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var tracer = telemetry.GetTracer("staffing/profiles")

const (
	DefaultLocation   = "Not specified"
	DefaultExperience = "Not specified"
)

type Store interface {
	// GetProfile returns nil, nil when no profile exists for email.
	GetProfile(ctx context.Context, email string) (*models.Profile, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) GetProfile(ctx context.Context, email string) (*models.Profile, error) {
	ctx, span := tracer.Start(ctx, "GetProfile")
	defer span.End()

	var p models.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT email, name, user_type, location, skills, experience
		FROM profiles
		WHERE lower(email) = $1`, models.NormalizeEmail(email)).
		Scan(&p.Email, &p.Name, &p.UserType, &p.Location, &p.Skills, &p.Experience)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, errors.Storage("querying profile", err)
	}
	return &p, nil
}

// WithDefaults returns a copy of p with placeholder values for the fields
// the hired view always shows. A nil p yields a profile of placeholders.
func WithDefaults(p *models.Profile, email string) models.Profile {
	out := models.Profile{Email: email}
	if p != nil {
		out = *p
	}
	if out.Location == "" {
		out.Location = DefaultLocation
	}
	if out.Experience == "" {
		out.Experience = DefaultExperience
	}
	if out.Skills == nil {
		out.Skills = []string{}
	}
	return out
}

// UserType returns the profile's user type, or "" when there is no profile.
func UserType(ctx context.Context, s Store, email string) (string, error) {
	p, err := s.GetProfile(ctx, email)
	if err != nil || p == nil {
		return "", err
	}
	return p.UserType, nil
}
