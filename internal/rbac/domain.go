// Package rbac stores role/capability assignments and answers exactly one
// policy question per request through the Guard.
package rbac

import "time"

// Role represents a high-level capability grouping within a tenant.
type Role struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Capability represents an atomic permission such as manage_invoices.
type Capability struct {
	ID          int64
	Code        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// Decision is the outcome of a single guard evaluation.
type Decision struct {
	Allowed    bool
	Capability string
	UserID     int64
}
