package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeIdentityStore struct {
	mu   sync.Mutex
	byID map[string]*Identity
}

func newFakeIdentityStore(identities ...*Identity) *fakeIdentityStore {
	s := &fakeIdentityStore{byID: make(map[string]*Identity)}
	for _, identity := range identities {
		s.byID[identity.ID] = identity
	}
	return s
}

func (s *fakeIdentityStore) FindByID(_ context.Context, id string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *identity
	return &clone, nil
}

func (s *fakeIdentityStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.byID {
		if strings.EqualFold(identity.Email, email) {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeIdentityStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.PasswordHash = passwordHash
	return nil
}

type fakeRevocationStore struct {
	mu      sync.Mutex
	entries map[string]*RevocationEntry
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{entries: make(map[string]*RevocationEntry)}
}

func (s *fakeRevocationStore) Insert(_ context.Context, entry *RevocationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.JTI]; ok {
		return ErrDuplicateRevocation
	}
	s.entries[entry.JTI] = entry
	return nil
}

func (s *fakeRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jti]
	return ok, nil
}

func (s *fakeRevocationStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for jti, entry := range s.entries {
		if entry.ExpiresAt.Before(now) {
			delete(s.entries, jti)
			removed++
		}
	}
	return removed, nil
}

type serviceFixture struct {
	svc         *Service
	identities  *fakeIdentityStore
	revocations *fakeRevocationStore
	now         *time.Time
}

func newServiceFixture(t *testing.T, identities ...*Identity) *serviceFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewCodec(testAccessSecret, testRefreshSecret,
		WithCodecClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	idStore := newFakeIdentityStore(identities...)
	revStore := newFakeRevocationStore()
	svc, err := NewService(idStore, revStore, codec,
		NewPasswordPolicy(WithBcryptCost(bcrypt.MinCost)),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &serviceFixture{svc: svc, identities: idStore, revocations: revStore, now: &now}
}

func activeIdentity(t *testing.T, id string, role Role) *Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return &Identity{
		ID:           id,
		Email:        id + "@sigacad.org",
		Name:         "Identity " + id,
		Role:         role,
		PasswordHash: string(hash),
		Active:       true,
	}
}

func TestLogin(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, got, err := f.svc.Login(ctx, "123@sigacad.org", "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != "123" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	claims, err := f.svc.codec.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "123" || claims.Role != RoleProfessor {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, _, err := f.svc.Login(ctx, "123@sigacad.org", "Wr0ng!Pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "nobody@sigacad.org", "Str0ng!Pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	identity := activeIdentity(t, "123", RoleAluno)
	identity.Active = false
	f := newServiceFixture(t, identity)

	if _, _, err := f.svc.Login(context.Background(), identity.Email, "Str0ng!Pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := f.svc.Authenticate(ctx, "Bearer "+pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != "123" || got.Role != RoleProfessor {
		t.Fatalf("unexpected identity: %+v", got)
	}

	if _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "Bearer garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsStaleClaims(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Demote after issuance: the token's role claim no longer matches.
	f.identities.byID["123"].Role = RoleAluno
	if _, err := f.svc.Authenticate(ctx, "Bearer "+pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for stale role claim, got %v", err)
	}
}

func TestAuthenticateRejectsInactiveIdentity(t *testing.T) {
	identity := activeIdentity(t, "123", RoleSecretaria)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.identities.byID["123"].Active = false
	if _, err := f.svc.Authenticate(ctx, "Bearer "+pair.AccessToken); !errors.Is(err, ErrInactiveIdentity) {
		t.Fatalf("expected ErrInactiveIdentity, got %v", err)
	}
}

func TestLogoutRevokesOnlyPresentedToken(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	first, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Logout(ctx, first.AccessToken, first.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, "Bearer "+first.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked for logged-out token, got %v", err)
	}
	// A different jti for the same subject is untouched.
	if _, err := f.svc.Authenticate(ctx, "Bearer "+second.AccessToken); err != nil {
		t.Fatalf("expected second session to survive, got %v", err)
	}
	// Revoked refresh token cannot be replayed either.
	if _, _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked for revoked refresh token, got %v", err)
	}

	// Logging out twice is idempotent.
	if err := f.svc.Logout(ctx, first.AccessToken, ""); err != nil {
		t.Fatalf("expected repeated logout to succeed, got %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	identity := activeIdentity(t, "123", RoleAluno)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, got, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.ID != "123" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a fresh refresh token")
	}
	if _, err := f.svc.Authenticate(ctx, "Bearer "+next.AccessToken); err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}

	// The used refresh token works exactly once.
	if _, _, err := f.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on refresh replay, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	identity := activeIdentity(t, "123", RoleAluno)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, err := f.svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)

	if err := f.svc.Authorize(identity, ActionEdit, ResourceTurmas); err != nil {
		t.Fatalf("expected edit turmas allowed for PROFESSOR, got %v", err)
	}
	if err := f.svc.Authorize(identity, ActionDelete, ResourceTurmas); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for delete turmas, got %v", err)
	}
	if err := f.svc.Authorize(nil, ActionView, ResourceTurmas); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for nil identity, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	identity := activeIdentity(t, "123", RoleSecretaria)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.ChangePassword(ctx, identity, pair.AccessToken, "Wr0ng!Pass", "N3w!Passw0rd"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong current password, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, identity, pair.AccessToken, "Str0ng!Pass", "weak"); err == nil {
		t.Fatalf("expected weak new password to be rejected")
	}

	if err := f.svc.ChangePassword(ctx, identity, pair.AccessToken, "Str0ng!Pass", "N3w!Passw0rd"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, identity.Email, "N3w!Passw0rd"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to stop working, got %v", err)
	}
	// The token the change was requested with is revoked.
	if _, err := f.svc.Authenticate(ctx, "Bearer "+pair.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after password change, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	identity := activeIdentity(t, "123", RoleProfessor)
	f := newServiceFixture(t, identity)
	ctx := context.Background()

	pair, _, err := f.svc.Login(ctx, identity.Email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Nothing expired yet.
	removed, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}

	// Past the access expiry, only the access entry is collectable.
	*f.now = f.now.Add(16 * time.Minute)
	removed, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	*f.now = f.now.Add(8 * 24 * time.Hour)
	removed, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected refresh entry removed, got %d", removed)
	}
}
