package dirauth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateIdentity marks handle/email collisions at registration.
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	// TextCodeTokenExpired marks lifecycle tokens at or past their expiry instant.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenInvalid marks malformed, tampered, or wrong-purpose tokens.
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeStoreInconsistency marks a directory entry left without a profile.
	TextCodeStoreInconsistency = "STORE_INCONSISTENCY"
	// TextCodeDirectoryUnavailable marks an unreachable or failing directory backend.
	TextCodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
	// TextCodeValidation marks aggregated input validation failures.
	TextCodeValidation = "VALIDATION_FAILED"
)

// ErrProfileNotFound is returned when no profile matches the given identifier.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode("PROFILE_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrIdentityNotFound is returned when the directory has no entry for a
// handle the profile store knows about: the two stores have drifted.
var ErrIdentityNotFound = goerrors.New("identity not found in directory", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateIdentity is returned when a registration reuses a handle or
// email an existing profile already owns.
var ErrDuplicateIdentity = goerrors.New("handle or email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrAccountUnverified blocks logins for profiles that never confirmed
// their email address.
var ErrAccountUnverified = goerrors.New("account email is not verified", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_UNVERIFIED").
	WithCode(goerrors.CodeForbidden)

// ErrAccountSuspended blocks logins for profiles whose status is not active.
var ErrAccountSuspended = goerrors.New("account is suspended or banned", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_SUSPENDED").
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCredentials is the single error surfaced for a failed bind. It
// does not distinguish a wrong password from an unknown DN.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrDirectoryUnavailable is returned when the directory service cannot be
// reached or rejected an operation for backend reasons.
var ErrDirectoryUnavailable = goerrors.New("directory service unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeDirectoryUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrTokenExpired is returned for structurally valid tokens at or past expiry.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned for malformed, tampered, replayed, or
// wrong-purpose tokens.
var ErrTokenInvalid = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrStoreInconsistency records a partial registration that compensation
// could not undo: a directory entry exists with no matching profile. It is
// an operational alert requiring manual reconciliation.
var ErrStoreInconsistency = goerrors.New("directory and profile store are inconsistent", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreInconsistency).
	WithCode(goerrors.CodeInternal)

// directoryFailure clones ErrDirectoryUnavailable and attaches the transport
// cause, so callers can match the taxonomy error while operators keep the
// backend detail.
func directoryFailure(err error, op string) error {
	clone := ErrDirectoryUnavailable.Clone()
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"op":    op,
		"cause": err.Error(),
	})
}

// HasTextCode reports whether err carries the given taxonomy text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsTokenExpired reports whether err is the token expiry failure, so callers
// can offer a "request a new link" flow only when it helps.
func IsTokenExpired(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsDirectoryUnavailable reports whether err maps to an unreachable or
// failing directory backend.
func IsDirectoryUnavailable(err error) bool {
	return HasTextCode(err, TextCodeDirectoryUnavailable)
}
