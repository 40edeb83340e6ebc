package repo

import (
	"context"
	"errors"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/entity"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a unique column (username, email) collides.
	ErrDuplicate = errors.New("user already exists")
)

// Repository is the user directory as seen by services. Implementations
// exist for the SQL backends (SQLRepo) and MongoDB (MongoRepo).
type Repository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context, skip, limit int) ([]*entity.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Ping(ctx context.Context) error
}

var (
	_ Repository = (*SQLRepo)(nil)
	_ Repository = (*MongoRepo)(nil)
)
