// Package dirauth coordinates accounts that live in two stores at once: an
// LDAP directory (Active Directory) that owns credentials and group
// membership, and a relational profile table that owns application data such
// as confirmation state, terms acceptance, and status.
//
// Orchestration:
//   - RegisterUserHandler creates a disabled directory entry, sets its
//     credential, enables it, and only then persists the profile. Each step
//     compensates on failure so a half-created account never survives; when
//     compensation itself fails the handler surfaces a store inconsistency
//     error for operators to reconcile.
//   - AuthenticationBroker gates a login on profile state (confirmed, active)
//     before any directory bind happens, then authenticates via an LDAP bind
//     with the user's own credentials.
//   - ConfirmAccountHandler and the password reset handlers redeem short-lived
//     JWTs minted by TokenIssuer; tokens are purpose-bound so a confirmation
//     token can never reset a password.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the handlers to
//     describe registration, confirmation, login, and reset events. Sink
//     errors are logged and never block the operation.
package dirauth
