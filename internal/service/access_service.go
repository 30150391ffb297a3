package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type permissionCatalog interface {
	PermissionSlugs(ctx context.Context, role models.UserRole) ([]string, error)
}

// AccessService is the access gate: permission slugs per role plus
// ownership rules for offerings and student records.
type AccessService struct {
	catalog permissionCatalog
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAccessService constructs the access gate.
func NewAccessService(catalog permissionCatalog, cache *CacheService, ttl time.Duration, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{catalog: catalog, cache: cache, ttl: ttl, logger: logger}
}

func permissionCacheKey(role models.UserRole) string {
	return fmt.Sprintf("perm:role:%s", role)
}

// Permissions returns the slugs granted to role.
func (s *AccessService) Permissions(ctx context.Context, role models.UserRole) ([]string, error) {
	key := permissionCacheKey(role)
	var slugs []string
	if s.cache.Get(ctx, key, &slugs) {
		return slugs, nil
	}
	slugs, err := s.catalog.PermissionSlugs(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permissions")
	}
	s.cache.Set(ctx, key, slugs, s.ttl)
	return slugs, nil
}

// Require fails with Forbidden unless the principal's role grants slug.
func (s *AccessService) Require(ctx context.Context, p models.Principal, slug string) error {
	if !p.Role.Valid() {
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	slugs, err := s.Permissions(ctx, p.Role)
	if err != nil {
		return err
	}
	for _, granted := range slugs {
		if granted == slug {
			return nil
		}
	}
	s.logger.Debug("permission denied", zap.String("user_id", p.UserID), zap.String("role", string(p.Role)), zap.String("permission", slug))
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("missing permission %s", slug))
}

// AuthorizeOffering checks that the principal may act on an offering owned
// by teacherID. Admins always may, teachers only on their own offerings.
func (s *AccessService) AuthorizeOffering(p models.Principal, teacherID *string) error {
	switch p.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if p.OwnsTeacher(teacherID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "offering is not assigned to you")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage offerings")
	}
}

// AuthorizeEnrollmentRead allows admins, the owning teacher and the enrolled
// student to read an enrollment's records.
func (s *AccessService) AuthorizeEnrollmentRead(p models.Principal, enrollment *models.EnrollmentDetail) error {
	return s.AuthorizeRecordRead(p, enrollment.StudentID, enrollment.TeacherID)
}

// AuthorizeRecordRead applies the enrollment read rule to a grade or
// attendance row belonging to studentID in an offering owned by teacherID.
func (s *AccessService) AuthorizeRecordRead(p models.Principal, studentID string, teacherID *string) error {
	if p.IsStudent() {
		if p.IsStudentProfile(studentID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you can only view your own records")
	}
	return s.AuthorizeOffering(p, teacherID)
}

// AuthorizeStudentRead allows staff to read any student's academic record
// and students to read only their own.
func (s *AccessService) AuthorizeStudentRead(p models.Principal, studentID string) error {
	switch p.Role {
	case models.RoleAdmin, models.RoleTeacher:
		return nil
	case models.RoleStudent:
		if p.IsStudentProfile(studentID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you can only view your own records")
	default:
		return appErrors.ErrForbidden
	}
}

// TeacherScope returns the teacher id list queries must be limited to, or
// "" for unrestricted callers. Teacher accounts without a profile are
// refused.
func (s *AccessService) TeacherScope(p models.Principal) (string, error) {
	if !p.IsTeacher() {
		return "", nil
	}
	if p.TeacherID == nil || *p.TeacherID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "account has no teacher profile")
	}
	return *p.TeacherID, nil
}
