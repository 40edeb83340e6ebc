package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/repo"
)

// DefaultTokenTTL is the validity window used when Config.TokenTTL is zero.
const DefaultTokenTTL = 30 * time.Minute

// Directory is the read-only user lookup the authority depends on. It must
// return userrepo.ErrNotFound for unknown keys.
type Directory interface {
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// Config is fixed for the lifetime of an Authority. Changing the secret
// means building a new Authority, which invalidates every token issued
// under the old one.
type Config struct {
	SecretKey []byte
	// Algorithm is one of HS256 (default), HS384, HS512.
	Algorithm string
	TokenTTL  time.Duration
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Token is an issued session token. Only Encoded travels to the client.
type Token struct {
	Subject   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	Encoded   string
}

func (t *Token) String() string { return t.Encoded }

// Authority authenticates credentials and issues/verifies stateless signed
// tokens. All methods are safe for concurrent use; nothing is mutated after
// construction.
type Authority struct {
	dir    Directory
	hasher PasswordHasher
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func New(cfg Config, dir Directory, hasher PasswordHasher) (*Authority, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, errors.New("auth: empty secret key")
	}
	if dir == nil {
		return nil, errors.New("auth: nil directory")
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", alg)
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if ttl < 0 {
		return nil, errors.New("auth: negative token ttl")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.SecretKey))
	copy(secret, cfg.SecretKey)

	a := &Authority{
		dir:    dir,
		hasher: hasher,
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    now,
	}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	return a, nil
}

// TTL returns the validity window of issued tokens.
func (a *Authority) TTL() time.Duration { return a.ttl }

// Authenticate checks username/password against the directory and issues a
// token on success. Unknown users and wrong passwords both yield
// ErrInvalidCredentials. Disabled accounts yield ErrAccountInactive even
// with the right password.
func (a *Authority) Authenticate(ctx context.Context, username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := a.dir.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}
	if u.PasswordHash == "" || !a.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a.issue(u.ID)
}

func (a *Authority) issue(subject int64) (*Token, error) {
	iat := jwt.NewNumericDate(a.now())
	exp := jwt.NewNumericDate(iat.Time.Add(a.ttl))
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subject, 10),
		IssuedAt:  iat,
		ExpiresAt: exp,
	}
	signed, err := jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{
		Subject:   subject,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
		Encoded:   signed,
	}, nil
}

// Verify checks the signature first, then expiry, and returns the subject.
// A token is rejected at exactly its expiry instant.
func (a *Authority) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrMalformedToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return 0, classify(err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q", ErrMalformedToken, claims.Subject)
	}
	return id, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}
