package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultMinPasswordLength = 8
	defaultBcryptCost        = 12
	defaultTemporaryLength   = 12
	defaultSecureTokenBytes  = 32

	passwordSymbols = "!@#$%^&*()-_=+[]{};:,.<>?"
	passwordUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordLower   = "abcdefghijklmnopqrstuvwxyz"
	passwordDigits  = "0123456789"
)

// commonPasswords is checked case-insensitively; membership alone fails
// validation regardless of character classes.
var commonPasswords = []string{
	"password", "password1", "password123", "12345678", "123456789",
	"1234567890", "qwerty123", "qwertyuiop", "iloveyou", "admin123",
	"letmein1", "welcome1", "sunshine", "princess", "football",
	"monkey123", "dragon123", "abc12345", "senha123", "mudar123",
}

// PasswordPolicy validates, hashes and generates credentials.
type PasswordPolicy struct {
	minLength int
	cost      int
}

// PasswordOption configures PasswordPolicy.
type PasswordOption func(*PasswordPolicy)

// WithMinLength overrides the minimum accepted password length.
func WithMinLength(n int) PasswordOption {
	return func(p *PasswordPolicy) {
		if n > 0 {
			p.minLength = n
		}
	}
}

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) PasswordOption {
	return func(p *PasswordPolicy) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.cost = cost
		}
	}
}

// NewPasswordPolicy constructs a policy with the default rules.
func NewPasswordPolicy(opts ...PasswordOption) *PasswordPolicy {
	p := &PasswordPolicy{
		minLength: defaultMinPasswordLength,
		cost:      defaultBcryptCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks the password against every rule and reports all violations
// together as a WeakPasswordError.
func (p *PasswordPolicy) Validate(password string) error {
	var reasons []string
	if len(password) < p.minLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters long", p.minLength))
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain a digit")
	}
	if !hasSymbol {
		reasons = append(reasons, "must contain a symbol ("+passwordSymbols+")")
	}
	lowered := strings.ToLower(password)
	for _, common := range commonPasswords {
		if lowered == common {
			reasons = append(reasons, "is too common")
			break
		}
	}
	if len(reasons) > 0 {
		return &WeakPasswordError{Reasons: reasons}
	}
	return nil
}

// Hash validates then hashes the password with bcrypt. A fresh random salt
// makes every call produce a different hash for the same input.
func (p *PasswordPolicy) Hash(password string) (string, error) {
	if err := p.Validate(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash. A mismatch is a
// normal outcome, never an error.
func (p *PasswordPolicy) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Strength scores the password 0..4 for UI feedback. Independent of Validate.
func (p *PasswordPolicy) Strength(password string) PasswordStrength {
	score := 0
	var hints []string

	if len(password) >= p.minLength {
		score++
	} else {
		hints = append(hints, fmt.Sprintf("use at least %d characters", p.minLength))
	}
	if len(password) >= 12 {
		score++
	} else {
		hints = append(hints, "longer passwords are stronger; aim for 12+")
	}

	classes := 0
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	if classes >= 3 {
		score++
	}
	if classes == 4 {
		score++
	} else {
		hints = append(hints, "mix upper and lower case letters, digits and symbols")
	}

	if hasRepeatRun(password, 3) {
		score--
		hints = append(hints, "avoid repeating the same character")
	}

	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}
	return PasswordStrength{Score: score, Hints: hints}
}

// GenerateTemporary returns a random password that satisfies Validate by
// construction: one character from each mandatory class, the remainder drawn
// from the full charset, then a secure shuffle.
func (p *PasswordPolicy) GenerateTemporary(length int) (string, error) {
	if length < defaultTemporaryLength {
		length = defaultTemporaryLength
	}
	if length < p.minLength {
		length = p.minLength
	}
	full := passwordUpper + passwordLower + passwordDigits + passwordSymbols
	chars := make([]byte, 0, length)
	for _, class := range []string{passwordUpper, passwordLower, passwordDigits, passwordSymbols} {
		c, err := randomFrom(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomFrom(full)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	// Fisher-Yates with crypto/rand so the seeded class characters do not
	// end up at predictable positions.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars), nil
}

// GenerateSecureToken returns 2*n hex characters from n random bytes. Used
// for out-of-band secrets such as reset tokens; not a signed token.
func GenerateSecureToken(n int) (string, error) {
	if n <= 0 {
		n = defaultSecureTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SecureCompare compares two secrets in constant time. Both sides are hashed
// first so the comparison leaks neither content nor length.
func SecureCompare(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

func hasRepeatRun(s string, n int) bool {
	run := 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func randomFrom(charset string) (byte, error) {
	i, err := randomInt(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("random: %w", err)
	}
	return int(n.Int64()), nil
}
