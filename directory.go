package dirauth

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Directory attribute names for the reference Active Directory backend.
const (
	attrCommonName      = "cn"
	attrSurname         = "sn"
	attrGivenName       = "givenName"
	attrDisplayName     = "displayName"
	attrMail            = "mail"
	attrLoginName       = "sAMAccountName"
	attrLoginPrincipal  = "userPrincipalName"
	attrProxyAddresses  = "proxyAddresses"
	attrMemberOf        = "memberOf"
	attrObjectClass     = "objectClass"
	attrAccountControl  = "userAccountControl"
	attrUnicodePassword = "unicodePwd"
)

// userAccountControl values. New entries start disabled and are enabled only
// after the credential has been assigned.
const (
	accountControlDisabled = "546" // NORMAL_ACCOUNT + PASSWD_NOTREQD + ACCOUNTDISABLE
	accountControlEnabled  = "512" // NORMAL_ACCOUNT
)

var userObjectClasses = []string{"top", "person", "organizationalPerson", "user"}

// DeriveDN returns the deterministic distinguished name for a handle under
// the configured user container.
func DeriveDN(handle, userContainerDN string) string {
	return fmt.Sprintf("CN=%s,%s", ldap.EscapeDN(handle), userContainerDN)
}

// LoginPrincipal returns the handle@domain principal stamped on new entries.
func LoginPrincipal(handle, domain string) string {
	return fmt.Sprintf("%s@%s", handle, domain)
}

// handleFilter matches an entry by login name equality.
func handleFilter(handle string) string {
	return fmt.Sprintf("(%s=%s)", attrLoginName, ldap.EscapeFilter(handle))
}

// emailFilter matches mail, login principal, or smtp proxy address, so
// recovery works even when the profile email drifted from the directory
// mail attribute.
func emailFilter(email string) string {
	escaped := ldap.EscapeFilter(email)
	return fmt.Sprintf(
		"(|(%s=%s)(%s=%s)(%s=smtp:%s))",
		attrMail, escaped,
		attrLoginPrincipal, escaped,
		attrProxyAddresses, escaped,
	)
}
