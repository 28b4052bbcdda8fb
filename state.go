package jackson

import (
	"sync"
)

// AuthStatus tags the authentication state of the shell.
type AuthStatus int

const (
	// StatusLoggedOut is the initial state and the state after logout.
	StatusLoggedOut AuthStatus = iota
	// StatusDisabled means no client ID is configured and the user toggled
	// the no-auth session on.
	StatusDisabled
	// StatusLoggedIn means the identity provider issued an access token.
	StatusLoggedIn
)

func (s AuthStatus) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusLoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s AuthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuthState is an immutable snapshot of the shell auth state.
type AuthState struct {
	Status       AuthStatus `json:"status"`
	AccessToken  string     `json:"-"`
	AuthResponse string     `json:"auth_response,omitempty"`
	HasResponse  bool       `json:"has_response"`
	Account      string     `json:"account,omitempty"`
	Pending      bool       `json:"pending"`
	PopupURL     string     `json:"popup_url,omitempty"`
	Version      uint64     `json:"version"`
}

// Authenticated reports whether the auth button should offer logout.
func (s AuthState) Authenticated() bool {
	return s.Status != StatusLoggedOut
}

// LoggedIn reports whether an access token is held.
func (s AuthState) LoggedIn() bool {
	return s.Status == StatusLoggedIn && s.AccessToken != ""
}

type subscription struct {
	id int
	fn func(AuthState)
}

// Store is a single writer, many reader broadcast cell. AuthController is
// the only component that changes status and token; subscribers get copies.
type Store struct {
	mu     sync.RWMutex
	state  AuthState
	subs   []subscription
	nextID int
}

// NewStore returns a store in the logged out state with no response.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called after every change. Callbacks run
// outside the store lock, in subscription order. Consumers that care about
// ordering across goroutines should compare Version.
func (s *Store) Subscribe(fn func(AuthState)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// SetAuthResponse replaces the auth response message.
func (s *Store) SetAuthResponse(msg string) {
	s.setResponse(msg)
}

// ClearAuthResponse removes the auth response message.
func (s *Store) ClearAuthResponse() {
	s.update(func(st *AuthState) {
		st.AuthResponse = ""
		st.HasResponse = false
	})
}

func (s *Store) setResponse(msg string) AuthState {
	return s.update(func(st *AuthState) {
		st.AuthResponse = msg
		st.HasResponse = true
	})
}

func (s *Store) setStatus(status AuthStatus, token, account string) AuthState {
	return s.update(func(st *AuthState) {
		st.Status = status
		if status == StatusLoggedIn {
			st.AccessToken = token
			st.Account = account
			return
		}
		st.AccessToken = ""
		st.Account = ""
	})
}

func (s *Store) beginAttempt() AuthState {
	return s.update(func(st *AuthState) {
		st.Pending = true
		st.AuthResponse = ""
		st.HasResponse = false
	})
}

func (s *Store) endAttempt() AuthState {
	return s.update(func(st *AuthState) {
		st.Pending = false
		st.PopupURL = ""
	})
}

func (s *Store) setPopupURL(url string) AuthState {
	return s.update(func(st *AuthState) {
		st.PopupURL = url
	})
}

func (s *Store) update(fn func(*AuthState)) AuthState {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	snap := s.state
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return snap
}

// ParseAuthStatus is the inverse of AuthStatus.String; unknown values map
// to StatusLoggedOut.
func ParseAuthStatus(s string) AuthStatus {
	switch s {
	case "disabled":
		return StatusDisabled
	case "logged_in":
		return StatusLoggedIn
	default:
		return StatusLoggedOut
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AuthStatus) UnmarshalText(b []byte) error {
	*s = ParseAuthStatus(string(b))
	return nil
}
