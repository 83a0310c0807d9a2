package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	_ IdentityStore   = (*PGIdentityStore)(nil)
	_ RevocationStore = (*PGRevocationStore)(nil)
)

// PGIdentityStore reads identities from PostgreSQL.
type PGIdentityStore struct {
	db *sql.DB
}

func NewPGIdentityStore(db *sql.DB) *PGIdentityStore {
	return &PGIdentityStore{db: db}
}

const identityColumns = `id, email, name, role, person_id, password_hash, active, created_at, updated_at`

func (s *PGIdentityStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *PGIdentityStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where lower(email)=lower($1)`, email)
	return scanIdentity(row)
}

func (s *PGIdentityStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	var (
		identity Identity
		personID sql.NullString
	)
	err := row.Scan(&identity.ID, &identity.Email, &identity.Name, &identity.Role,
		&personID, &identity.PasswordHash, &identity.Active,
		&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	identity.PersonID = personID.String
	identity.Email = strings.ToLower(identity.Email)
	return &identity, nil
}

// PGRevocationStore persists the revocation ledger. The jti primary key makes
// Insert an atomic check-and-set: two concurrent logouts for the same token
// race at the index, and the loser gets ErrDuplicateRevocation.
type PGRevocationStore struct {
	db *sql.DB
}

func NewPGRevocationStore(db *sql.DB) *PGRevocationStore {
	return &PGRevocationStore{db: db}
}

func (s *PGRevocationStore) Insert(ctx context.Context, entry *RevocationEntry) error {
	_, err := s.db.ExecContext(ctx,
		`insert into revoked_tokens(jti, token, expires_at, revoked_at) values($1,$2,$3,$4)`,
		entry.JTI, entry.Token, entry.ExpiresAt, entry.RevokedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateRevocation
		}
		return err
	}
	return nil
}

func (s *PGRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where jti=$1)`, jti).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PGRevocationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from revoked_tokens where expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
