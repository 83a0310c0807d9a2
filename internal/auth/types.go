package auth

import "time"

// Role is the closed set of access levels known to the system.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSecretaria Role = "SECRETARIA"
	RoleProfessor  Role = "PROFESSOR"
	RoleAluno      Role = "ALUNO"
)

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSecretaria, RoleProfessor, RoleAluno:
		return true
	}
	return false
}

// Identity represents an authenticated principal. Rows are owned by the
// persistence layer; this core reads them and only ever writes the password
// hash column.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PersonID     string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenKind tags a signed token as one of the two token classes.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the verified payload of a signed token.
type TokenClaims struct {
	Subject   string
	Email     string
	Role      Role
	Kind      TokenKind
	ID        string // jti, the revocation key
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair bundles the access and refresh tokens issued together.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RevocationEntry records one explicitly invalidated token. Entries are never
// mutated; a retention sweep removes them once past their natural expiry.
type RevocationEntry struct {
	JTI       string
	Token     string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// PasswordStrength is a transient UI-feedback evaluation, never persisted.
type PasswordStrength struct {
	Score int      `json:"score"`
	Hints []string `json:"hints,omitempty"`
}
