package user

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	maxPasswordBytes = 72
)

var (
	ErrAlreadyExists = errors.New("email or username already registered")
	ErrUserNotFound  = errors.New("user not found")
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned when input fails validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// RegisterInput is the payload for creating an account. Passwords are
// capped at 72 bytes, the most bcrypt will hash.
type RegisterInput struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Username string  `json:"username" validate:"required,max=255"`
	Password string  `json:"password" validate:"required"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

// UserService orchestrates registration and directory maintenance.
// Authentication lives in the auth package.
type UserService struct {
	repo     userrepo.Repository
	hasher   auth.PasswordHasher
	ids      *utilities.IDGenerator
	validate *validator.Validate
}

func NewUserService(r userrepo.Repository, hasher auth.PasswordHasher, ids *utilities.IDGenerator) *UserService {
	if hasher == nil {
		hasher = auth.BcryptHasher{Cost: 12}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &UserService{repo: r, hasher: hasher, ids: ids, validate: v}
}

// Register validates the input and creates an active, non-superuser account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := &ValidationError{}
			for _, fe := range verrs {
				out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			return nil, out
		}
		return nil, err
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, &ValidationError{Fields: []FieldError{{Field: "password", Rule: "max=72"}}}
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		ID:           s.ids.Next(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return u, nil
}

// List returns a page of users. A zero limit means DefaultListLimit; larger
// limits are clamped to MaxListLimit.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]*entity.User, error) {
	if skip < 0 || limit < 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "skip/limit", Rule: "min=0"}}}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.List(ctx, skip, limit)
}

// SetActiveByUsername enables or disables an account. Outstanding tokens of
// a disabled account are rejected by the auth gate.
func (s *UserService) SetActiveByUsername(ctx context.Context, username string, active bool) (*entity.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := s.repo.SetActive(ctx, u.ID, active); err != nil {
		return nil, err
	}
	u.IsActive = active
	return u, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, userrepo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}
