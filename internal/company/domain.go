// Package company holds the per-tenant business profile stamped onto
// invoices and used by the tax calculator and number allocator.
package company

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BillingSettings are the tenant's invoice formatting switches.
type BillingSettings struct {
	RoundOffTotal bool
}

// Profile is a tenant's registered business identity.
type Profile struct {
	OwnerID   int64
	Name      string
	Code      string
	GSTIN     string
	State     string
	Address   string
	Phone     string
	Email     string
	Billing   BillingSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the immutable subset copied onto an invoice at creation.
type Snapshot struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	GSTIN   string `json:"gstin,omitempty"`
	State   string `json:"state,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Snapshot returns the invoice-stamp view of the profile.
func (p Profile) Snapshot() Snapshot {
	return Snapshot{
		Name:    p.Name,
		Code:    p.Code,
		GSTIN:   p.GSTIN,
		State:   p.State,
		Address: p.Address,
		Phone:   p.Phone,
		Email:   p.Email,
	}
}

// DeriveCode builds the three-character numbering code from a company name:
// fold diacritics, uppercase, keep alphanumerics, take the first three,
// pad with X when the name is too short.
func DeriveCode(name string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	code := b.String()
	for len(code) < 3 {
		code += "X"
	}
	return code
}
