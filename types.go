package dirauth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// DirectoryClient wraps the directory service. Every call opens a fresh
// authenticated session and releases it on every exit path; implementations
// must never cache a bind across calls.
type DirectoryClient interface {
	// BindAs verifies a credential by binding as the given DN.
	BindAs(ctx context.Context, dn, secret string) error
	// CreateIdentity adds a directory entry for the given identity, initially disabled.
	CreateIdentity(ctx context.Context, dn string, identity NewIdentity) error
	// SetCredential replaces the directory-native credential attribute.
	SetCredential(ctx context.Context, dn, secret string) error
	// EnableIdentity flips the account control attribute to the enabled value.
	EnableIdentity(ctx context.Context, dn string) error
	// DisableOrDeleteIdentity removes the entry, falling back to disabling it
	// when deletion is not permitted. Used as registration compensation.
	DisableOrDeleteIdentity(ctx context.Context, dn string) error
	// FindByHandle resolves an entry by its login name.
	FindByHandle(ctx context.Context, handle string) (*DirectoryIdentity, error)
	// FindByEmailLike resolves an entry by mail, login principal, or proxy
	// address, for recovery flows where the caller does not know the handle.
	FindByEmailLike(ctx context.Context, email string) (*DirectoryIdentity, error)
}

// NewIdentity carries the attributes registration writes into the directory.
type NewIdentity struct {
	Handle      string
	GivenName   string
	FamilyName  string
	DisplayName string
	Email       string
}

// DirectoryIdentity is a directory entry fetched fresh per call. It is
// external state: never cached across requests, never mutated locally.
type DirectoryIdentity struct {
	DN          string
	Handle      string
	Email       string
	DisplayName string
	Groups      []string
	Enabled     bool
}

// ProfileStore is the document-store side of the dual-store pair: profile
// CRUD with uniqueness constraints on handle and email.
type ProfileStore interface {
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByHandle(ctx context.Context, handle string) (*Profile, error)
	// GetByConfirmationToken returns the profile holding the given
	// outstanding, non-expired confirmation token.
	GetByConfirmationToken(ctx context.Context, token string, now time.Time) (*Profile, error)
	Create(ctx context.Context, profile *Profile) (*Profile, error)
	Update(ctx context.Context, profile *Profile) (*Profile, error)
	// MarkConfirmed flips the confirmation state and erases the token pair.
	MarkConfirmed(ctx context.Context, profile *Profile) (*Profile, error)
}

// Notifier dispatches lifecycle email. Calls are fire-and-forget from the
// orchestrators' perspective: failures are logged, never returned to users.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AuthenticatedUser merges profile fields with directory display attributes
// after a successful login.
type AuthenticatedUser struct {
	ID          string   `json:"id"`
	GivenName   string   `json:"given_name"`
	FamilyName  string   `json:"family_name"`
	Handle      string   `json:"handle"`
	Avatar      string   `json:"avatar,omitempty"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Status      Status   `json:"status"`
	DisplayName string   `json:"display_name,omitempty"`
	Groups      []string `json:"groups,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] DIRAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] DIRAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] DIRAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] DIRAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
