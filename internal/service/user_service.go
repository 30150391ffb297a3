package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

// CreateUserRequest represents payload for creating login accounts.
type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	FullName  string          `json:"full_name" validate:"required,max=150"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin teacher student"`
	TeacherID *string         `json:"teacher_id"`
	StudentID *string         `json:"student_id"`
	Password  string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating accounts.
type UpdateUserRequest struct {
	FullName  string          `json:"full_name" validate:"required,max=150"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin teacher student"`
	TeacherID *string         `json:"teacher_id"`
	StudentID *string         `json:"student_id"`
	Active    *bool           `json:"active"`
}

// UserService manages login accounts and their profile links.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new account with a bcrypt password hash.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	teacherID, studentID, err := profileLinks(req.Role, req.TeacherID, req.StudentID)
	if err != nil {
		return nil, err
	}

	email := req.Email
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !isNoRows(err) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		TeacherID:    teacherID,
		StudentID:    studentID,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.writeError(err, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update modifies name, role, profile links and the active flag.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	teacherID, studentID, err := profileLinks(req.Role, req.TeacherID, req.StudentID)
	if err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.TeacherID, user.StudentID = teacherID, studentID
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.writeError(err, "failed to update user")
	}
	return user, nil
}

// Deactivate disables an account. Admins cannot disable themselves.
func (s *UserService) Deactivate(ctx context.Context, actor models.Principal, id string) error {
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrConflict, "cannot deactivate your own account")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return s.writeError(err, "failed to deactivate user")
	}
	return nil
}

func (s *UserService) writeError(err error, msg string) error {
	switch {
	case isNoRows(err):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "email or profile already linked to another account")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
}

// profileLinks enforces that teacher and student accounts point at exactly
// their own profile kind and admin accounts at none.
func profileLinks(role models.UserRole, teacherID, studentID *string) (*string, *string, error) {
	teacherID, studentID = blankToNil(teacherID), blankToNil(studentID)
	switch role {
	case models.RoleTeacher:
		if teacherID == nil || studentID != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "teacher accounts require teacher_id only")
		}
	case models.RoleStudent:
		if studentID == nil || teacherID != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student accounts require student_id only")
		}
	default:
		if teacherID != nil || studentID != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "admin accounts cannot link a profile")
		}
	}
	return teacherID, studentID, nil
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
