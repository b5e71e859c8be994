package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/arka-retail/arka/internal/shared"
)

// Service manages tenant company profiles.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the profile for the scope's tenant.
func (s *Service) Get(ctx context.Context, scope shared.Scope, ownerID int64) (Profile, error) {
	if err := scope.Check(ownerID); err != nil {
		return Profile{}, err
	}
	return s.repo.GetProfile(ctx, ownerID)
}

// Save validates and upserts the profile, deriving the numbering code from
// the name when none is set. Collisions get a numeric suffix.
func (s *Service) Save(ctx context.Context, scope shared.Scope, p Profile) (Profile, error) {
	if err := scope.Check(p.OwnerID); err != nil {
		return Profile{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Profile{}, fmt.Errorf("company name required: %w", shared.ErrValidation)
	}
	p.State = strings.TrimSpace(p.State)

	if p.Code == "" {
		code := DeriveCode(p.Name)
		candidate := code
		for i := 2; ; i++ {
			taken, err := s.repo.CodeTaken(ctx, candidate, p.OwnerID)
			if err != nil {
				return Profile{}, err
			}
			if !taken {
				break
			}
			candidate = fmt.Sprintf("%s%d", code, i)
		}
		p.Code = candidate
	}

	return s.repo.SaveProfile(ctx, p)
}
