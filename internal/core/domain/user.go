package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
	MaxFullNameLength = 255
	MaxEmailLength    = 255
)

type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
	CreatedAt      time.Time
}

// Principal is the authenticated identity behind a request or a
// subscription session.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// RegistrationParams holds the fields needed to create an account.
type RegistrationParams struct {
	Email    string
	FullName string
	Password string
}

// Validate checks the registration fields and reports every problem at once.
func (p *RegistrationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	p.Email = NormalizeEmail(p.Email)
	p.FullName = strings.TrimSpace(p.FullName)

	switch {
	case p.Email == "":
		errs.Add("email", "Email is required")
	case len(p.Email) > MaxEmailLength:
		errs.Add("email", "Email must be 255 characters or less")
	case !IsValidEmail(p.Email):
		errs.Add("email", "Invalid email format")
	}

	if p.FullName == "" {
		errs.Add("fullName", "Full name is required")
	} else if len(p.FullName) > MaxFullNameLength {
		errs.Add("fullName", "Full name must be 255 characters or less")
	}

	for _, msg := range ValidatePassword(p.Password) {
		errs.Add("password", msg)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidatePassword returns the list of rules the password breaks.
func ValidatePassword(password string) []string {
	var problems []string

	if len(password) < MinPasswordLength {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		problems = append(problems, "Password must be 72 bytes or less")
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsNumber(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		problems = append(problems, "Password must contain at least one letter")
	}
	if !hasNumber {
		problems = append(problems, "Password must contain at least one number")
	}

	return problems
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether email parses as a bare address.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// CheckPassword verifies password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil
}

// HashPassword hashes a password that already satisfies ValidatePassword.
func HashPassword(password string) (string, error) {
	if len(ValidatePassword(password)) > 0 {
		return "", apperrors.ErrPasswordTooWeak
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewUser validates params and returns a user with a hashed password.
func NewUser(params RegistrationParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	return &User{
		ID:             uuid.New(),
		Email:          params.Email,
		FullName:       params.FullName,
		HashedPassword: hash,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Principal returns the identity used for authorization decisions.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email}
}
