package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
)

// Gate resolves the caller of a protected endpoint. Beyond verifying the
// token it reloads the user and re-checks the active flag, since a token
// stays valid after the account behind it is disabled.
type Gate struct {
	authority *Authority
	dir       Directory
}

func NewGate(a *Authority) *Gate {
	return &Gate{authority: a, dir: a.dir}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

// Resolve takes the raw Authorization header and returns the current user.
func (g *Gate) Resolve(ctx context.Context, authorization string) (*entity.User, error) {
	tok, ok := BearerToken(authorization)
	if !ok {
		return nil, fmt.Errorf("%w: missing bearer token", ErrMalformedToken)
	}
	id, err := g.authority.Verify(tok)
	if err != nil {
		return nil, err
	}
	u, err := g.dir.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}
	return u, nil
}

type ctxKey struct{}

// WithUser stores the resolved user on the request context.
func WithUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*entity.User)
	return u, ok && u != nil
}
