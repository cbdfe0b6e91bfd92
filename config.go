package dirauth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Config carries everything the package needs, injected explicitly at
// construction. Components never read ambient environment state, so tests
// can substitute fakes without process-wide mutation.
type Config struct {
	// DirectoryURL is the ldaps:// endpoint of the directory service.
	DirectoryURL string
	// AdminDN and AdminSecret are the administrative bind used for
	// create/modify/search operations. User credential checks bind as the
	// user's own DN instead.
	AdminDN     string
	AdminSecret string
	// UserContainerDN is the fixed organizational path user entries live
	// under, e.g. "CN=Users,DC=example,DC=local". A user's DN is derived
	// deterministically from it and the handle.
	UserContainerDN string
	// SearchBaseDN is the subtree root for lookups, e.g. "DC=example,DC=local".
	SearchBaseDN string
	// UPNDomain is the realm appended to handles for the login principal,
	// e.g. "example.local" yields "nova@example.local".
	UPNDomain string
	// InsecureSkipVerify accepts self-signed directory certificates.
	// Development only.
	InsecureSkipVerify bool

	// SigningKey signs confirmation, reset, and session tokens.
	SigningKey string
	// Issuer is stamped into issued tokens.
	Issuer string

	ConfirmTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	SessionTokenTTL time.Duration

	// TermsVersion is recorded on profiles at registration.
	TermsVersion string
}

// WithDefaults fills zero-valued optional fields and returns the config.
func (c Config) WithDefaults() Config {
	if c.ConfirmTokenTTL == 0 {
		c.ConfirmTokenTTL = 24 * time.Hour
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = 15 * time.Minute
	}
	if c.SessionTokenTTL == 0 {
		c.SessionTokenTTL = 24 * time.Hour
	}
	if c.TermsVersion == "" {
		c.TermsVersion = "1.0"
	}
	if c.Issuer == "" {
		c.Issuer = "dirauth"
	}
	return c
}

// Validate checks the fields without which no component can operate.
func (c Config) Validate() error {
	missing := []string{}
	if c.DirectoryURL == "" {
		missing = append(missing, "DirectoryURL")
	}
	if c.AdminDN == "" {
		missing = append(missing, "AdminDN")
	}
	if c.UserContainerDN == "" {
		missing = append(missing, "UserContainerDN")
	}
	if c.SearchBaseDN == "" {
		missing = append(missing, "SearchBaseDN")
	}
	if c.UPNDomain == "" {
		missing = append(missing, "UPNDomain")
	}
	if c.SigningKey == "" {
		missing = append(missing, "SigningKey")
	}

	if len(missing) > 0 {
		return goerrors.New("incomplete configuration", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"missing": missing})
	}

	return nil
}
