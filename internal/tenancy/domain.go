// Package tenancy resolves the tenant data boundary for a request
// principal. Staff accounts act within their manager's tenant, account
// owners within their own, and platform super-admins across all tenants.
package tenancy

// Principal is the slice of the user record the resolver needs.
type Principal struct {
	ID         int64
	Email      string
	SuperAdmin bool
	ParentID   int64 // 0 when the account has no manager
	IsActive   bool
}
