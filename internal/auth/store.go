package auth

import (
	"context"
	"time"
)

// IdentityStore reads principals from the backing identity table. The core
// only ever writes the password hash column.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// RevocationStore persists the ledger of explicitly invalidated tokens.
// Insert must be atomic: a duplicate jti fails with ErrDuplicateRevocation
// via the storage layer's unique constraint, never via read-then-write.
type RevocationStore interface {
	Insert(ctx context.Context, entry *RevocationEntry) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
