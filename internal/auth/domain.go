package auth

import "time"

// User represents an account able to sign in to the admin API.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	IsActive     bool
	LastLogin    time.Time
	CreatedAt    time.Time
}

// Token is a signed bearer token handed out after a successful login.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}
