package dirauth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	dirauth "github.com/nexusforge/go-dirauth"
)

func activeProfile() *dirauth.Profile {
	return &dirauth.Profile{
		ID:         uuid.New(),
		GivenName:  "Nova",
		FamilyName: "Reyes",
		Handle:     "nova",
		Email:      "nova@example.local",
		Role:       dirauth.RolePlayer,
		Status:     dirauth.StatusActive,
		Confirmed:  true,
	}
}

func novaIdentity() *dirauth.DirectoryIdentity {
	return &dirauth.DirectoryIdentity{
		DN:          "CN=nova,CN=Users,DC=example,DC=local",
		Handle:      "nova",
		Email:       "nova@example.local",
		DisplayName: "Nova Reyes",
		Groups:      []string{"CN=players,DC=example,DC=local"},
		Enabled:     true,
	}
}

func TestAuthenticationBroker_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("merges profile and directory attributes on success", func(t *testing.T) {
		profile := activeProfile()
		identity := novaIdentity()

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, "nova@example.local").Return(profile, nil)
		directory.On("FindByHandle", mock.Anything, "nova").Return(identity, nil)
		directory.On("BindAs", mock.Anything, identity.DN, "sup3r-secret").Return(nil)

		recorder := &activityRecorder{}
		broker := dirauth.NewAuthenticationBroker(profiles, directory).
			WithLogger(testLogger{}).
			WithActivitySink(recorder)

		user, err := broker.Login(ctx, "nova@example.local", "sup3r-secret")
		require.NoError(t, err)

		assert.Equal(t, profile.ID.String(), user.ID)
		assert.Equal(t, "nova", user.Handle)
		assert.Equal(t, "Nova Reyes", user.DisplayName)
		assert.Equal(t, identity.Groups, user.Groups)
		assert.Equal(t, dirauth.RolePlayer, user.Role)

		assert.True(t, recorder.HasEvent(dirauth.ActivityEventLoginSuccess))
	})

	t.Run("unknown email fails without touching the directory", func(t *testing.T) {
		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, dirauth.ErrProfileNotFound)

		broker := dirauth.NewAuthenticationBroker(profiles, directory).WithLogger(testLogger{})

		_, err := broker.Login(ctx, "ghost@example.local", "whatever")
		require.Error(t, err)

		directory.AssertNotCalled(t, "FindByHandle", mock.Anything, mock.Anything)
		directory.AssertNotCalled(t, "BindAs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unconfirmed account is gated before any directory call", func(t *testing.T) {
		profile := activeProfile()
		profile.Confirmed = false

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)

		recorder := &activityRecorder{}
		broker := dirauth.NewAuthenticationBroker(profiles, directory).
			WithLogger(testLogger{}).
			WithActivitySink(recorder)

		_, err := broker.Login(ctx, profile.Email, "sup3r-secret")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "ACCOUNT_UNVERIFIED"))

		directory.AssertNotCalled(t, "FindByHandle", mock.Anything, mock.Anything)
		directory.AssertNotCalled(t, "BindAs", mock.Anything, mock.Anything, mock.Anything)
		assert.True(t, recorder.HasEvent(dirauth.ActivityEventLoginFailure))
	})

	t.Run("suspended account is gated before any directory call", func(t *testing.T) {
		profile := activeProfile()
		profile.Status = dirauth.StatusSuspended

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)

		broker := dirauth.NewAuthenticationBroker(profiles, directory).WithLogger(testLogger{})

		_, err := broker.Login(ctx, profile.Email, "sup3r-secret")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "ACCOUNT_SUSPENDED"))

		directory.AssertNotCalled(t, "BindAs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("banned account is gated the same way", func(t *testing.T) {
		profile := activeProfile()
		profile.Status = dirauth.StatusBanned

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)

		broker := dirauth.NewAuthenticationBroker(profiles, directory).WithLogger(testLogger{})

		_, err := broker.Login(ctx, profile.Email, "sup3r-secret")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "ACCOUNT_SUSPENDED"))
	})

	t.Run("missing directory entry reports drift", func(t *testing.T) {
		profile := activeProfile()

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)
		directory.On("FindByHandle", mock.Anything, "nova").Return(nil, nil)

		broker := dirauth.NewAuthenticationBroker(profiles, directory).WithLogger(testLogger{})

		_, err := broker.Login(ctx, profile.Email, "sup3r-secret")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "IDENTITY_NOT_FOUND"))

		directory.AssertNotCalled(t, "BindAs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed bind surfaces invalid credentials", func(t *testing.T) {
		profile := activeProfile()
		identity := novaIdentity()

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)
		directory.On("FindByHandle", mock.Anything, "nova").Return(identity, nil)
		directory.On("BindAs", mock.Anything, identity.DN, "wrong-password").
			Return(dirauth.ErrInvalidCredentials)

		recorder := &activityRecorder{}
		broker := dirauth.NewAuthenticationBroker(profiles, directory).
			WithLogger(testLogger{}).
			WithActivitySink(recorder)

		_, err := broker.Login(ctx, profile.Email, "wrong-password")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "INVALID_CREDENTIALS"))
		assert.True(t, recorder.HasEvent(dirauth.ActivityEventLoginFailure))
	})

	t.Run("directory outage is not reported as bad credentials", func(t *testing.T) {
		profile := activeProfile()
		identity := novaIdentity()

		profiles := new(MockProfileStore)
		directory := new(MockDirectoryClient)

		profiles.On("GetByEmail", mock.Anything, mock.Anything).Return(profile, nil)
		directory.On("FindByHandle", mock.Anything, "nova").Return(identity, nil)
		directory.On("BindAs", mock.Anything, identity.DN, mock.Anything).
			Return(dirauth.ErrDirectoryUnavailable)

		broker := dirauth.NewAuthenticationBroker(profiles, directory).WithLogger(testLogger{})

		_, err := broker.Login(ctx, profile.Email, "sup3r-secret")
		require.Error(t, err)
		assert.True(t, dirauth.IsDirectoryUnavailable(err))
		assert.False(t, dirauth.HasTextCode(err, "INVALID_CREDENTIALS"))
	})
}
