// Package auth handles credential checks and login session records.
package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	SuperAdmin   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
