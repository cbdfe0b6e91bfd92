package dirauth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AuthenticationBroker authorizes a login by combining profile-side state
// gates with a directory credential bind. No password is ever compared
// locally: the directory bind is the sole credential check.
type AuthenticationBroker struct {
	profiles  ProfileStore
	directory DirectoryClient
	activity  ActivitySink
	logger    Logger
}

// NewAuthenticationBroker returns a broker over the given stores.
func NewAuthenticationBroker(profiles ProfileStore, directory DirectoryClient) *AuthenticationBroker {
	return &AuthenticationBroker{
		profiles:  profiles,
		directory: directory,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (b *AuthenticationBroker) WithActivitySink(sink ActivitySink) *AuthenticationBroker {
	b.activity = normalizeActivitySink(sink)
	return b
}

func (b *AuthenticationBroker) WithLogger(logger Logger) *AuthenticationBroker {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Login runs the ordered gate sequence: profile lookup, confirmation gate,
// status gate, directory resolution, credential bind. Account-state
// failures are distinguished (they are not secrets); the credential step
// only ever surfaces ErrInvalidCredentials.
func (b *AuthenticationBroker) Login(ctx context.Context, email, password string) (*AuthenticatedUser, error) {
	profile, err := b.profiles.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrProfileNotFound) {
			b.emitLoginFailure(ctx, "", email, ErrProfileNotFound)
			return nil, ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile for login")
	}

	// Unconfirmed accounts can never log in, so the directory is not even
	// consulted for them.
	if !profile.Confirmed {
		b.emitLoginFailure(ctx, profile.ID.String(), email, ErrAccountUnverified)
		return nil, ErrAccountUnverified
	}

	if err := statusAuthError(profile.Status); err != nil {
		b.logger.Warn("login blocked due to profile status", "status", profile.Status, "handle", profile.Handle)
		b.emitLoginFailure(ctx, profile.ID.String(), email, err)
		return nil, err
	}

	identity, err := b.directory.FindByHandle(ctx, profile.Handle)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		// The profile references a handle the directory no longer knows.
		b.logger.Error("profile and directory have drifted", "handle", profile.Handle)
		b.emitLoginFailure(ctx, profile.ID.String(), email, ErrIdentityNotFound)
		return nil, ErrIdentityNotFound
	}

	if err := b.directory.BindAs(ctx, identity.DN, password); err != nil {
		if IsDirectoryUnavailable(err) {
			return nil, err
		}
		b.emitLoginFailure(ctx, profile.ID.String(), email, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	user := mergeAuthenticatedUser(profile, identity)

	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		ProfileID: user.ID,
		Metadata:  map[string]any{"handle": user.Handle},
	})

	return user, nil
}

// mergeAuthenticatedUser combines profile fields with directory display
// attributes into the value returned to callers.
func mergeAuthenticatedUser(profile *Profile, identity *DirectoryIdentity) *AuthenticatedUser {
	return &AuthenticatedUser{
		ID:          profile.ID.String(),
		GivenName:   profile.GivenName,
		FamilyName:  profile.FamilyName,
		Handle:      profile.Handle,
		Avatar:      profile.Avatar,
		Email:       profile.Email,
		Role:        profile.Role,
		Status:      profile.Status,
		DisplayName: identity.DisplayName,
		Groups:      identity.Groups,
	}
}

func (b *AuthenticationBroker) emitLoginFailure(ctx context.Context, profileID, email string, cause error) {
	actor := ActorRef{Type: "unknown"}
	if profileID != "" {
		actor = ActorRef{ID: profileID, Type: "user"}
	}
	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     actor,
		ProfileID: profileID,
		Metadata: map[string]any{
			"identifier": email,
			"error":      cause.Error(),
		},
	})
}
