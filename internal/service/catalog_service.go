package service

import (
	"context"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type catalogRepository interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
}

// CatalogService serves the reference lookups used by clients to build forms.
type CatalogService struct {
	repo    catalogRepository
	periods *PeriodService
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(repo catalogRepository, periods *PeriodService) *CatalogService {
	return &CatalogService{repo: repo, periods: periods}
}

// Roles lists every role.
func (s *CatalogService) Roles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roles")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// Permissions lists every permission.
func (s *CatalogService) Permissions(ctx context.Context) ([]models.Permission, error) {
	permissions, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	if permissions == nil {
		permissions = []models.Permission{}
	}
	return permissions, nil
}

// Periods lists academic periods.
func (s *CatalogService) Periods(ctx context.Context) ([]models.AcademicPeriod, error) {
	return s.periods.List(ctx)
}
