package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/duochat/duochat/internal/platform/errors"
	"github.com/duochat/duochat/internal/services/chat/storage"
)

// Config defines how access tokens are verified.
type Config struct {
	// Secret is the HMAC signing secret shared with the token issuer.
	Secret string
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Now overrides the clock for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// TokenProvider verifies HS256 access tokens and resolves their subject
// against the user directory.
type TokenProvider struct {
	secret    []byte
	issuer    string
	now       func() time.Time
	directory storage.UserStore
}

// NewTokenProvider builds a Provider from a verification config and a
// user directory.
func NewTokenProvider(cfg Config, directory storage.UserStore) (*TokenProvider, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if directory == nil {
		return nil, errors.New("user directory is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenProvider{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(cfg.Issuer),
		now:       now,
		directory: directory,
	}, nil
}

// ResolveToken verifies the token signature and claims, then resolves
// the subject user.
func (p *TokenProvider) ResolveToken(ctx context.Context, token string) (Identity, error) {
	if p == nil {
		return Identity{}, errors.New("token provider is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthorized, "access token is required")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		options = append(options, jwt.WithIssuer(p.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, options...)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, apperrors.New(apperrors.CodeUnauthorized, "token subject is not a user id")
	}
	return p.ResolveUser(ctx, userID)
}

// ResolveUser looks up a user directory entry by identifier.
func (p *TokenProvider) ResolveUser(ctx context.Context, userID int64) (Identity, error) {
	if p == nil || p.directory == nil {
		return Identity{}, errors.New("token provider is not configured")
	}
	if userID <= 0 {
		return Identity{}, apperrors.New(apperrors.CodeUnknownUser, "user id must be positive")
	}

	user, err := p.directory.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, apperrors.New(apperrors.CodeUnknownUser, fmt.Sprintf("user %d is not registered", userID))
		}
		return Identity{}, apperrors.Wrap(apperrors.CodeStorageFailure, "resolve user", err)
	}
	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Active:   user.Active,
	}, nil
}

// SignToken mints a short-lived HS256 token for the given user. Intended
// for seed tooling and tests; production tokens come from the external
// issuer.
func SignToken(cfg Config, userID int64, ttl time.Duration) (string, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return "", errors.New("token secret is required")
	}
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	issued := now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.New(apperrors.CodeUnauthorized, "access token is expired")
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeUnauthorized, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeUnauthorized, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeUnauthorized, "access token is invalid")
}

var _ Provider = (*TokenProvider)(nil)
