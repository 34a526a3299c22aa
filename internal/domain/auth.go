package domain

import "time"

// User is a registered household member. PasswordHash is bcrypt and never
// leaves the auth store boundary.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
}

// RegisterRequest carries the fields needed to create a user.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string
	Password string
}

// TokenPair is what login/refresh return.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	UserID       string
	UserName     string
}

// RefreshToken is the stored (hashed) form of a refresh token.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
}
