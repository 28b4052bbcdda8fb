package jackson

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockIdentityClient implements IdentityClient
type MockIdentityClient struct {
	mock.Mock
}

func (m *MockIdentityClient) LoginPopup(ctx context.Context, scopes []string) (*LoginResult, error) {
	args := m.Called(ctx, scopes)
	res, _ := args.Get(0).(*LoginResult)
	return res, args.Error(1)
}

func (m *MockIdentityClient) AcquireTokenSilent(ctx context.Context, scopes []string, authority string) (string, error) {
	args := m.Called(ctx, scopes, authority)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityClient) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recordingAlerter counts alerts
type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingAlerter) Alert(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingAlerter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// stubConfig implements Config
type stubConfig struct {
	clientID    string
	basePath    string
	authority   string
	redirectURL string
}

func (s stubConfig) GetClientID() string    { return s.clientID }
func (s stubConfig) GetBasePath() string    { return s.basePath }
func (s stubConfig) GetAuthority() string   { return s.authority }
func (s stubConfig) GetRedirectURL() string { return s.redirectURL }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const testClientID = "3f1a2b4c-0000-4000-8000-00000000c11e"
