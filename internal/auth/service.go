package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service is the composition point: it verifies credentials and tokens,
// consults the revocation ledger and answers authorization questions.
type Service struct {
	identities  IdentityStore
	revocations RevocationStore
	codec       *Codec
	passwords   *PasswordPolicy
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(identities IdentityStore, revocations RevocationStore, codec *Codec, passwords *PasswordPolicy, opts ...ServiceOption) (*Service, error) {
	if identities == nil {
		return nil, errors.New("auth: identity store is required")
	}
	if revocations == nil {
		return nil, errors.New("auth: revocation store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if passwords == nil {
		passwords = NewPasswordPolicy()
	}
	svc := &Service{
		identities:  identities,
		revocations: revocations,
		codec:       codec,
		passwords:   passwords,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Passwords exposes the policy engine for callers that need strength
// feedback or temporary credentials.
func (s *Service) Passwords() *PasswordPolicy {
	return s.passwords
}

// Login verifies email/password and issues a fresh token pair. Every failure
// mode collapses to ErrInvalidCredentials so responses cannot be used to
// probe which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	if !identity.Active {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if !s.passwords.Verify(password, identity.PasswordHash) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	pair, err := s.codec.IssuePair(identity)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, identity, nil
}

// Authenticate resolves the Authorization header value to an identity:
// extract -> verify -> revocation check -> identity lookup -> active check.
func (s *Service) Authenticate(ctx context.Context, headerValue string) (*Identity, error) {
	token := ExtractBearerToken(headerValue)
	if token == "" {
		return nil, ErrMissingCredentials
	}
	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	identity, err := s.identities.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, err
	}
	// Claims must agree with the stored identity; a stale token for a
	// renamed or demoted account is not trusted.
	if !strings.EqualFold(identity.Email, claims.Email) || identity.Role != claims.Role {
		return nil, fmt.Errorf("%w: identity mismatch", ErrInvalidToken)
	}
	if !identity.Active {
		return nil, ErrInactiveIdentity
	}
	return identity, nil
}

// Authorize asks the capability matrix whether the identity may perform the
// action on the resource.
func (s *Service) Authorize(identity *Identity, action Action, resource Resource) error {
	if identity == nil {
		return ErrForbidden
	}
	if !Can(action, resource, identity.Role) {
		return ErrForbidden
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The used refresh
// token's jti is revoked so each refresh token works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *Identity, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return TokenPair{}, nil, ErrRevoked
	}
	identity, err := s.identities.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return TokenPair{}, nil, err
	}
	if !identity.Active {
		return TokenPair{}, nil, ErrInactiveIdentity
	}
	if err := s.revokeClaims(ctx, claims, refreshToken); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.codec.IssuePair(identity)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, identity, nil
}

// Logout revokes the presented access token and, when given, the refresh
// token. Revoking an already-revoked token is treated as success.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		// An expired or garbage token cannot be re-validated anyway.
		return err
	}
	if err := s.revokeClaims(ctx, claims, accessToken); err != nil {
		return err
	}
	if strings.TrimSpace(refreshToken) != "" {
		refreshClaims, err := s.codec.VerifyRefresh(refreshToken)
		if err != nil {
			return err
		}
		if err := s.revokeClaims(ctx, refreshClaims, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

// Revoke writes a single token to the ledger. The write is effective for all
// subsequent Authenticate calls as soon as it returns.
func (s *Service) Revoke(ctx context.Context, jti, token string, naturalExpiry time.Time) error {
	entry := &RevocationEntry{
		JTI:       jti,
		Token:     token,
		ExpiresAt: naturalExpiry,
		RevokedAt: s.now().UTC(),
	}
	return s.revocations.Insert(ctx, entry)
}

// ChangePassword verifies the current password, installs the new hash and
// revokes the token the change was requested with.
func (s *Service) ChangePassword(ctx context.Context, identity *Identity, accessToken, current, next string) error {
	if identity == nil {
		return ErrMissingCredentials
	}
	stored, err := s.identities.FindByID(ctx, identity.ID)
	if err != nil {
		return err
	}
	if !s.passwords.Verify(current, stored.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.passwords.Hash(next)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	// The password is already changed at this point; the requesting token
	// is revoked so it cannot outlive the old credential.
	if claims, err := s.codec.VerifyAccess(accessToken); err == nil {
		return s.revokeClaims(ctx, claims, accessToken)
	}
	return nil
}

// SweepExpired removes ledger entries past their natural expiry. Safe at any
// cadence: an expired token already fails verification on its own.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.revocations.DeleteExpired(ctx, s.now().UTC())
}

func (s *Service) revokeClaims(ctx context.Context, claims TokenClaims, token string) error {
	err := s.Revoke(ctx, claims.ID, token, claims.ExpiresAt)
	if errors.Is(err, ErrDuplicateRevocation) {
		return nil
	}
	return err
}
