package dirauth_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	dirauth "github.com/nexusforge/go-dirauth"
)

// MockDirectoryClient implements dirauth.DirectoryClient
type MockDirectoryClient struct {
	mock.Mock
}

func (m *MockDirectoryClient) BindAs(ctx context.Context, dn, secret string) error {
	args := m.Called(ctx, dn, secret)
	return args.Error(0)
}

func (m *MockDirectoryClient) CreateIdentity(ctx context.Context, dn string, identity dirauth.NewIdentity) error {
	args := m.Called(ctx, dn, identity)
	return args.Error(0)
}

func (m *MockDirectoryClient) SetCredential(ctx context.Context, dn, secret string) error {
	args := m.Called(ctx, dn, secret)
	return args.Error(0)
}

func (m *MockDirectoryClient) EnableIdentity(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockDirectoryClient) DisableOrDeleteIdentity(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockDirectoryClient) FindByHandle(ctx context.Context, handle string) (*dirauth.DirectoryIdentity, error) {
	args := m.Called(ctx, handle)
	var identity *dirauth.DirectoryIdentity
	if v := args.Get(0); v != nil {
		identity = v.(*dirauth.DirectoryIdentity)
	}
	return identity, args.Error(1)
}

func (m *MockDirectoryClient) FindByEmailLike(ctx context.Context, email string) (*dirauth.DirectoryIdentity, error) {
	args := m.Called(ctx, email)
	var identity *dirauth.DirectoryIdentity
	if v := args.Get(0); v != nil {
		identity = v.(*dirauth.DirectoryIdentity)
	}
	return identity, args.Error(1)
}

// MockProfileStore implements dirauth.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetByEmail(ctx context.Context, email string) (*dirauth.Profile, error) {
	args := m.Called(ctx, email)
	var profile *dirauth.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*dirauth.Profile)
	}
	return profile, args.Error(1)
}

func (m *MockProfileStore) GetByHandle(ctx context.Context, handle string) (*dirauth.Profile, error) {
	args := m.Called(ctx, handle)
	var profile *dirauth.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*dirauth.Profile)
	}
	return profile, args.Error(1)
}

func (m *MockProfileStore) GetByConfirmationToken(ctx context.Context, token string, now time.Time) (*dirauth.Profile, error) {
	args := m.Called(ctx, token, now)
	var profile *dirauth.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*dirauth.Profile)
	}
	return profile, args.Error(1)
}

func (m *MockProfileStore) Create(ctx context.Context, profile *dirauth.Profile) (*dirauth.Profile, error) {
	args := m.Called(ctx, profile)
	var created *dirauth.Profile
	if v := args.Get(0); v != nil {
		created = v.(*dirauth.Profile)
	}
	return created, args.Error(1)
}

func (m *MockProfileStore) Update(ctx context.Context, profile *dirauth.Profile) (*dirauth.Profile, error) {
	args := m.Called(ctx, profile)
	var updated *dirauth.Profile
	if v := args.Get(0); v != nil {
		updated = v.(*dirauth.Profile)
	}
	return updated, args.Error(1)
}

func (m *MockProfileStore) MarkConfirmed(ctx context.Context, profile *dirauth.Profile) (*dirauth.Profile, error) {
	args := m.Called(ctx, profile)
	var confirmed *dirauth.Profile
	if v := args.Get(0); v != nil {
		confirmed = v.(*dirauth.Profile)
	}
	return confirmed, args.Error(1)
}

// testLogger swallows log output so tests stay quiet
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// activityRecorder captures activity events for assertions
type activityRecorder struct {
	mu     sync.Mutex
	events []dirauth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event dirauth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Events() []dirauth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dirauth.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *activityRecorder) HasEvent(eventType dirauth.ActivityEventType) bool {
	for _, e := range r.Events() {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

// notifierRecorder captures dispatched notifications on channels so tests
// can wait for the fire-and-forget goroutine.
type notifierRecorder struct {
	verifications chan string
	resets        chan string
}

func newNotifierRecorder() *notifierRecorder {
	return &notifierRecorder{
		verifications: make(chan string, 4),
		resets:        make(chan string, 4),
	}
}

func (n *notifierRecorder) SendVerification(_ context.Context, email, _ string) error {
	n.verifications <- email
	return nil
}

func (n *notifierRecorder) SendPasswordReset(_ context.Context, email, _ string) error {
	n.resets <- email
	return nil
}

func testConfig() dirauth.Config {
	return dirauth.Config{
		DirectoryURL:    "ldaps://directory.test:636",
		AdminDN:         "CN=svc-admin,CN=Users,DC=example,DC=local",
		AdminSecret:     "admin-secret",
		UserContainerDN: "CN=Users,DC=example,DC=local",
		SearchBaseDN:    "DC=example,DC=local",
		UPNDomain:       "example.local",
		SigningKey:      "test-signing-key",
		Issuer:          "dirauth-test",
	}
}
