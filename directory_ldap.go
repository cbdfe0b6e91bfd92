package dirauth

import (
	"context"
	"crypto/tls"
	"strconv"

	"github.com/go-ldap/ldap/v3"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/text/encoding/unicode"
)

const accountDisabledBit = 0x2

var searchAttributes = []string{
	attrCommonName,
	attrMail,
	attrDisplayName,
	attrLoginName,
	attrLoginPrincipal,
	attrMemberOf,
	attrAccountControl,
}

// LDAPDirectory implements DirectoryClient over an LDAP/Active Directory
// backend. Every operation dials a fresh connection, binds, operates, and
// unbinds; nothing is pooled or reused, so a stuck session never outlives
// its call.
type LDAPDirectory struct {
	cfg    Config
	logger Logger
}

var _ DirectoryClient = (*LDAPDirectory)(nil)

// NewLDAPDirectory returns a DirectoryClient for the configured backend.
func NewLDAPDirectory(cfg Config) *LDAPDirectory {
	return &LDAPDirectory{
		cfg:    cfg.WithDefaults(),
		logger: defLogger{},
	}
}

func (d *LDAPDirectory) WithLogger(logger Logger) *LDAPDirectory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// withSession dials, runs fn, and closes the connection on every exit path.
// The caller is responsible for binding inside fn.
func (d *LDAPDirectory) withSession(ctx context.Context, op string, fn func(conn *ldap.Conn) error) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before directory "+op)
	}

	conn, err := d.dial()
	if err != nil {
		return directoryFailure(err, op)
	}
	defer conn.Close()

	return fn(conn)
}

// withAdminSession binds the administrative DN before running fn.
func (d *LDAPDirectory) withAdminSession(ctx context.Context, op string, fn func(conn *ldap.Conn) error) error {
	return d.withSession(ctx, op, func(conn *ldap.Conn) error {
		if err := conn.Bind(d.cfg.AdminDN, d.cfg.AdminSecret); err != nil {
			d.logger.Error("directory admin bind failed", "op", op, "error", err)
			return directoryFailure(err, op)
		}
		return fn(conn)
	})
}

func (d *LDAPDirectory) dial() (*ldap.Conn, error) {
	var opts []ldap.DialOpt
	if d.cfg.InsecureSkipVerify {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}
	return ldap.DialURL(d.cfg.DirectoryURL, opts...)
}

// BindAs verifies a credential by binding as the target DN. The bind is the
// sole credential check in the system; no secret ever leaves the directory.
func (d *LDAPDirectory) BindAs(ctx context.Context, dn, secret string) error {
	return d.withSession(ctx, "bind", func(conn *ldap.Conn) error {
		if err := conn.Bind(dn, secret); err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
				return ErrInvalidCredentials
			}
			return directoryFailure(err, "bind")
		}
		return nil
	})
}

// CreateIdentity adds the entry with the disabled control value. The entry
// only becomes usable after SetCredential and EnableIdentity succeed.
func (d *LDAPDirectory) CreateIdentity(ctx context.Context, dn string, identity NewIdentity) error {
	return d.withAdminSession(ctx, "add", func(conn *ldap.Conn) error {
		req := ldap.NewAddRequest(dn, nil)
		req.Attribute(attrCommonName, []string{identity.Handle})
		req.Attribute(attrSurname, []string{identity.FamilyName})
		req.Attribute(attrGivenName, []string{identity.GivenName})
		req.Attribute(attrDisplayName, []string{identity.DisplayName})
		req.Attribute(attrMail, []string{identity.Email})
		req.Attribute(attrLoginName, []string{identity.Handle})
		req.Attribute(attrLoginPrincipal, []string{LoginPrincipal(identity.Handle, d.cfg.UPNDomain)})
		req.Attribute(attrObjectClass, userObjectClasses)
		req.Attribute(attrAccountControl, []string{accountControlDisabled})

		if err := conn.Add(req); err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
				return ErrDuplicateIdentity
			}
			return directoryFailure(err, "add")
		}
		return nil
	})
}

// SetCredential writes the backend-native credential attribute. The backend
// rejects a replace on brand-new entries with UnwillingToPerform, in which
// case a single retry with an add modification is attempted.
func (d *LDAPDirectory) SetCredential(ctx context.Context, dn, secret string) error {
	encoded, err := encodeCredential(secret)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode directory credential")
	}

	return d.withAdminSession(ctx, "modify", func(conn *ldap.Conn) error {
		replace := ldap.NewModifyRequest(dn, nil)
		replace.Replace(attrUnicodePassword, []string{encoded})

		errReplace := conn.Modify(replace)
		if errReplace == nil {
			return nil
		}

		if !ldap.IsErrorWithCode(errReplace, ldap.LDAPResultUnwillingToPerform) {
			return directoryFailure(errReplace, "modify")
		}

		d.logger.Debug("credential replace rejected, retrying with add", "dn", dn)

		add := ldap.NewModifyRequest(dn, nil)
		add.Add(attrUnicodePassword, []string{encoded})
		if err := conn.Modify(add); err != nil {
			return directoryFailure(err, "modify")
		}
		return nil
	})
}

// EnableIdentity flips the control attribute to the enabled value.
func (d *LDAPDirectory) EnableIdentity(ctx context.Context, dn string) error {
	return d.withAdminSession(ctx, "modify", func(conn *ldap.Conn) error {
		req := ldap.NewModifyRequest(dn, nil)
		req.Replace(attrAccountControl, []string{accountControlEnabled})
		if err := conn.Modify(req); err != nil {
			return directoryFailure(err, "modify")
		}
		return nil
	})
}

// DisableOrDeleteIdentity is the registration compensation primitive.
// Deletion is preferred; when the admin bind lacks delete rights the entry
// is disabled instead so it can never authenticate.
func (d *LDAPDirectory) DisableOrDeleteIdentity(ctx context.Context, dn string) error {
	return d.withAdminSession(ctx, "delete", func(conn *ldap.Conn) error {
		err := conn.Del(ldap.NewDelRequest(dn, nil))
		if err == nil {
			return nil
		}

		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return ErrIdentityNotFound
		}

		if !ldap.IsErrorWithCode(err, ldap.LDAPResultInsufficientAccessRights) &&
			!ldap.IsErrorWithCode(err, ldap.LDAPResultUnwillingToPerform) {
			return directoryFailure(err, "delete")
		}

		d.logger.Warn("directory delete not permitted, disabling entry instead", "dn", dn)

		req := ldap.NewModifyRequest(dn, nil)
		req.Replace(attrAccountControl, []string{accountControlDisabled})
		if err := conn.Modify(req); err != nil {
			return directoryFailure(err, "delete")
		}
		return nil
	})
}

// FindByHandle searches the subtree for a login-name match. A nil identity
// with nil error means no entry exists.
func (d *LDAPDirectory) FindByHandle(ctx context.Context, handle string) (*DirectoryIdentity, error) {
	return d.search(ctx, handleFilter(handle))
}

// FindByEmailLike searches by mail, login principal, or proxy address.
func (d *LDAPDirectory) FindByEmailLike(ctx context.Context, email string) (*DirectoryIdentity, error) {
	return d.search(ctx, emailFilter(email))
}

func (d *LDAPDirectory) search(ctx context.Context, filter string) (*DirectoryIdentity, error) {
	var identity *DirectoryIdentity

	err := d.withAdminSession(ctx, "search", func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			d.cfg.SearchBaseDN,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			0, 0, false,
			filter,
			searchAttributes,
			nil,
		)

		res, err := conn.Search(req)
		if err != nil {
			return directoryFailure(err, "search")
		}

		if len(res.Entries) == 0 {
			return nil
		}

		// Duplicate login names are a directory misconfiguration; the first
		// result wins.
		identity = identityFromEntry(res.Entries[0])
		return nil
	})

	if err != nil {
		return nil, err
	}
	return identity, nil
}

func identityFromEntry(entry *ldap.Entry) *DirectoryIdentity {
	return &DirectoryIdentity{
		DN:          entry.DN,
		Handle:      entry.GetAttributeValue(attrLoginName),
		Email:       entry.GetAttributeValue(attrMail),
		DisplayName: entry.GetAttributeValue(attrDisplayName),
		Groups:      entry.GetAttributeValues(attrMemberOf),
		Enabled:     accountEnabled(entry.GetAttributeValue(attrAccountControl)),
	}
}

func accountEnabled(control string) bool {
	if control == "" {
		return false
	}
	v, err := strconv.Atoi(control)
	if err != nil {
		return false
	}
	return v&accountDisabledBit == 0
}

// encodeCredential produces the quoted UTF-16LE buffer Active Directory
// expects in unicodePwd.
func encodeCredential(secret string) (string, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	return enc.String(`"` + secret + `"`)
}
