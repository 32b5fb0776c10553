package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	PBKDF2Iterations = 100_000
	SaltLength       = 16
	KeyLength        = 32
	MinPasswordLen   = 8
	MaxPasswordLen   = 128

	hashAlgorithm = "pbkdf2-sha256"
)

// ErrInvalidHash is returned when a stored hash record cannot be parsed
var ErrInvalidHash = errors.New("invalid password hash format")

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password does not meet requirements"
}

var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"admin123":     true,
	"letmein":      true,
	"welcome":      true,
	"helpdesk":     true,
	"passw0rd":     true,
	"changeme":     true,
	"trustno1":     true,
}

// HashPassword derives a salted PBKDF2-HMAC-SHA256 key and encodes it as
// $pbkdf2-sha256$i=<iterations>$<salt>$<key> so verification needs nothing else.
func HashPassword(password string) (string, error) {
	return hashWithIterations(password, PBKDF2Iterations)
}

func hashWithIterations(password string, iterations int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, KeyLength, sha256.New)

	return fmt.Sprintf("$%s$i=%d$%s$%s",
		hashAlgorithm,
		iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the encoded record.
// Malformed records never match.
func VerifyPassword(password, encoded string) bool {
	iterations, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	candidate := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha256.New)
	return subtle.ConstantTimeCompare(key, candidate) == 1
}

func decodeHash(encoded string) (int, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != hashAlgorithm {
		return 0, nil, nil, ErrInvalidHash
	}

	iterStr, ok := strings.CutPrefix(parts[2], "i=")
	if !ok {
		return 0, nil, nil, ErrInvalidHash
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations < 1 {
		return 0, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, ErrInvalidHash
	}

	return iterations, salt, key, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the current defaults.
func NeedsRehash(encoded string) bool {
	iterations, salt, key, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	return iterations < PBKDF2Iterations || len(salt) < SaltLength || len(key) < KeyLength
}

// ValidatePassword enforces strong password requirements for new admin passwords
func ValidatePassword(password string) error {
	errs := make([]string, 0)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSpecial {
		errs = append(errs, "must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "is too common")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}
	return nil
}
