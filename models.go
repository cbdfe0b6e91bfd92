package dirauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the application role recorded on a profile
type Role = string

const (
	// RolePlayer is the default role for self-registered accounts
	RolePlayer Role = "player"
	// RoleAdmin grants administrative access
	RoleAdmin Role = "admin"
)

// Status is the profile account status
type Status = string

const (
	// StatusActive is the only status allowed to authenticate
	StatusActive Status = "active"
	// StatusSuspended is a temporary administrative lock
	StatusSuspended Status = "suspended"
	// StatusBanned is a permanent administrative lock
	StatusBanned Status = "banned"
)

// Profile is the application-owned half of the dual store. Credentials are
// never persisted here; the directory is the sole credential authority.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID         uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	GivenName  string    `bun:"given_name,notnull" json:"given_name,omitempty"`
	FamilyName string    `bun:"family_name,notnull" json:"family_name,omitempty"`
	Handle     string    `bun:"handle,notnull,unique" json:"handle,omitempty"`
	Avatar     string    `bun:"avatar" json:"avatar,omitempty"`
	Email      string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Role       Role      `bun:"role,notnull" json:"role,omitempty"`
	Status     Status    `bun:"status,notnull" json:"status,omitempty"`

	Confirmed           bool       `bun:"confirmed" json:"confirmed"`
	ConfirmationToken   string     `bun:"confirmation_token,nullzero" json:"-"`
	ConfirmationExpires *time.Time `bun:"confirmation_expires,nullzero" json:"-"`
	TermsAccepted       bool       `bun:"terms_accepted,notnull" json:"terms_accepted"`
	TermsAcceptedAt     *time.Time `bun:"terms_accepted_at,nullzero" json:"terms_accepted_at,omitempty"`
	TermsVersion        string     `bun:"terms_version" json:"terms_version,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureDefaults backfills role and status for records created before those
// columns carried defaults.
func (p *Profile) EnsureDefaults() {
	if p.Role == "" {
		p.Role = RolePlayer
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
}

// IsActive reports whether the profile may authenticate by status alone.
func (p *Profile) IsActive() bool {
	return p.Status == StatusActive || p.Status == ""
}

// ConfirmationOutstanding reports whether the profile still holds a live
// confirmation token at the given instant.
func (p *Profile) ConfirmationOutstanding(now time.Time) bool {
	if p.Confirmed || p.ConfirmationToken == "" || p.ConfirmationExpires == nil {
		return false
	}
	return now.Before(*p.ConfirmationExpires)
}

// statusAuthError maps a non-active status to the auth gate error.
func statusAuthError(status Status) error {
	switch status {
	case StatusActive, "":
		return nil
	default:
		return ErrAccountSuspended
	}
}
