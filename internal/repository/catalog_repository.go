package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

// CatalogRepository reads the static role and permission tables.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListRoles returns every role.
func (r *CatalogRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, `SELECT id, slug, name, description FROM roles ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// ListPermissions returns every permission.
func (r *CatalogRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	if err := r.db.SelectContext(ctx, &permissions, `SELECT id, slug, name, description FROM permissions ORDER BY slug`); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, nil
}

// PermissionSlugs returns the permission slugs granted to a role.
func (r *CatalogRepository) PermissionSlugs(ctx context.Context, role models.UserRole) ([]string, error) {
	const query = `SELECT p.slug FROM permissions p
        JOIN role_permissions rp ON rp.permission_id = p.id
        JOIN roles r ON r.id = rp.role_id
        WHERE r.slug = $1 ORDER BY p.slug`
	var slugs []string
	if err := r.db.SelectContext(ctx, &slugs, query, role); err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	return slugs, nil
}
