package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer       = "sigacad"
	bearerScheme = "Bearer "

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Codec creates and verifies signed, time-bounded identity assertions.
// Access and refresh tokens are signed with separate secrets so that
// compromising one cannot forge the other class.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. Missing or identical secrets are a startup
// misconfiguration and are rejected here, not at request time.
func NewCodec(accessSecret, refreshSecret string, opts ...CodecOption) (*Codec, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: signing secrets are not configured")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type jwtClaims struct {
	Email string    `json:"email,omitempty"`
	Role  Role      `json:"role,omitempty"`
	Kind  TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// IssuePair signs a fresh access/refresh token pair for the identity. Each
// token carries its own jti.
func (c *Codec) IssuePair(identity *Identity) (TokenPair, error) {
	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		return TokenPair{}, errors.New("auth: identity is required")
	}
	now := c.now().UTC()
	accessExp := now.Add(c.accessTTL)
	refreshExp := now.Add(c.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email: identity.Email,
		Role:  identity.Role,
		Kind:  TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			ID:        uuid.NewString(),
		},
	})
	accessToken, err := access.SignedString(c.accessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Kind: TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			ID:        uuid.NewString(),
		},
	})
	refreshToken, err := refresh.SignedString(c.refreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates signature, expiry and structure of an access token.
// Every failure collapses to ErrInvalidToken; the wrapped message carries the
// diagnostic detail.
func (c *Codec) VerifyAccess(token string) (TokenClaims, error) {
	claims, err := c.verify(token, c.accessSecret)
	if err != nil {
		return TokenClaims{}, err
	}
	if claims.Kind != TokenKindAccess {
		return TokenClaims{}, fmt.Errorf("%w: wrong token kind", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token against the refresh secret. A
// payload carrying any kind other than refresh is rejected; a payload with no
// kind tag is tolerated for tokens minted before the tag existed.
func (c *Codec) VerifyRefresh(token string) (TokenClaims, error) {
	claims, err := c.verify(token, c.refreshSecret)
	if err != nil {
		return TokenClaims{}, err
	}
	if claims.Kind != "" && claims.Kind != TokenKindRefresh {
		return TokenClaims{}, fmt.Errorf("%w: wrong token kind", ErrInvalidToken)
	}
	return claims, nil
}

func (c *Codec) verify(token string, secret []byte) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if strings.Count(token, ".") != 2 {
		return TokenClaims{}, fmt.Errorf("%w: malformed token", ErrInvalidToken)
	}
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		// Single fixed algorithm per secret; no negotiation.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }), jwt.WithIssuer(issuer))
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return TokenClaims{}, fmt.Errorf("%w: claims rejected", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return TokenClaims{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return TokenClaims{}, fmt.Errorf("%w: timestamps missing", ErrInvalidToken)
	}
	if !claims.IssuedAt.Time.Before(claims.ExpiresAt.Time) {
		return TokenClaims{}, fmt.Errorf("%w: expiry precedes issued-at", ErrInvalidToken)
	}
	// The exact expiry instant counts as already expired.
	if !c.now().UTC().Before(claims.ExpiresAt.Time) {
		return TokenClaims{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	return TokenClaims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		Kind:      claims.Kind,
		ID:        claims.RegisteredClaims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// Absence of credentials is a normal case: missing header, wrong scheme or an
// empty token all return "".
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}
