package jackson

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultAuthority is the authority used for silent token acquisition when
// the build does not override it.
const DefaultAuthority = "https://login.microsoftonline.com/microsoft.onmicrosoft.com"

const disabledAuthWarning = "AAD Client ID has not been configured. If you are currently in production mode, see the 'deploy' documentation for details on how to fix this."

// OutcomeKind names the branch a trigger took.
type OutcomeKind int

const (
	OutcomeToggled OutcomeKind = iota
	OutcomeAlerted
	OutcomeLoggedIn
	OutcomeLoggedOut
	OutcomeFailed
	OutcomeBusy
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeToggled:
		return "toggled"
	case OutcomeAlerted:
		return "alerted"
	case OutcomeLoggedIn:
		return "logged_in"
	case OutcomeLoggedOut:
		return "logged_out"
	case OutcomeBusy:
		return "busy"
	default:
		return "failed"
	}
}

// Outcome is the result of a single HandleAuth call.
type Outcome struct {
	Kind  OutcomeKind
	State AuthState
	Err   error
}

// AuthController owns the auth state and implements the login/logout
// transitions. It is the only writer of the Store.
type AuthController struct {
	clientID  string
	authority string
	client    IdentityClient
	store     *Store
	alerter   Alerter
	logger    Logger
	activity  ActivitySink
	inflight  atomic.Bool
	now       func() time.Time
}

// NewAuthController returns a controller for cfg. A nil client with a non
// empty client ID models an identity client that failed to initialize.
func NewAuthController(cfg Config, client IdentityClient) *AuthController {
	authority := strings.TrimSpace(cfg.GetAuthority())
	if authority == "" {
		authority = DefaultAuthority
	}

	return &AuthController{
		clientID:  strings.TrimSpace(cfg.GetClientID()),
		authority: authority,
		client:    client,
		store:     NewStore(),
		alerter:   AlerterFunc(nil),
		logger:    defLogger{},
		activity:  noopActivitySink{},
		now:       time.Now,
	}
}

func (c *AuthController) WithLogger(logger Logger) *AuthController {
	c.logger = normalizeLogger(logger)
	return c
}

// WithStore replaces the state holder, mostly useful to share a store
// created before the controller.
func (c *AuthController) WithStore(store *Store) *AuthController {
	if store != nil {
		c.store = store
	}
	return c
}

// WithAlerter sets the sink for blocking alerts.
func (c *AuthController) WithAlerter(alerter Alerter) *AuthController {
	if alerter == nil {
		alerter = AlerterFunc(nil)
	}
	c.alerter = alerter
	return c
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (c *AuthController) WithActivitySink(sink ActivitySink) *AuthController {
	c.activity = normalizeActivitySink(sink)
	return c
}

// Store returns the state holder.
func (c *AuthController) Store() *Store {
	return c.store
}

// Enabled reports whether a client ID was configured.
func (c *AuthController) Enabled() bool {
	return c.clientID != ""
}

// Context publishes the live capability set for subscribers.
func (c *AuthController) Context() AuthContext {
	return AuthContext{
		Snapshot:          c.store.Snapshot,
		HandleAuth:        c.HandleAuth,
		SetAuthResponse:   c.store.SetAuthResponse,
		ClearAuthResponse: c.store.ClearAuthResponse,
	}
}

// OpenPopup records the URL the user has to visit to finish an interactive
// login. It is meant to be wired as the identity client's opener.
func (c *AuthController) OpenPopup(_ context.Context, url string) {
	c.logger.Info("Login popup requested", "url", url)
	c.store.setPopupURL(url)
}

// HandleAuth is the auth trigger. It never panics on collaborator failures;
// they end up in the auth response message.
func (c *AuthController) HandleAuth(ctx context.Context) (out Outcome) {
	if !c.inflight.CompareAndSwap(false, true) {
		c.logger.Warn("Auth trigger ignored, another attempt is in flight")
		c.emit(ctx, ActivityEventBusy, c.store.Snapshot(), ErrAuthInProgress.Message, nil)
		return c.outcome(OutcomeBusy, ErrAuthInProgress)
	}
	defer c.inflight.Store(false)

	failEvent := ActivityEventLoginFailure
	defer func() {
		if r := recover(); r != nil {
			out = c.fail(ctx, failEvent, "recover", panicError(r))
		}
	}()

	if c.clientID == "" {
		return c.toggle(ctx)
	}

	if c.client == nil {
		c.logger.Error("Identity client not initialized", "client_id", c.clientID)
		c.alerter.Alert(ctx, ErrClientNotInitialized.Message)
		c.emit(ctx, ActivityEventMisconfigured, c.store.Snapshot(), ErrClientNotInitialized.Message, nil)
		return c.outcome(OutcomeAlerted, ErrClientNotInitialized)
	}

	current := c.store.beginAttempt()
	defer func() {
		out.State = c.store.endAttempt()
	}()

	if current.Authenticated() {
		failEvent = ActivityEventLogoutFailure
		return c.logout(ctx)
	}
	return c.login(ctx)
}

func (c *AuthController) toggle(ctx context.Context) Outcome {
	if c.store.Snapshot().Authenticated() {
		state := c.store.setStatus(StatusLoggedOut, "", "")
		c.emit(ctx, ActivityEventToggleDisabled, state, "", nil)
		return Outcome{Kind: OutcomeToggled, State: state}
	}

	c.logger.Warn(disabledAuthWarning)
	state := c.store.setStatus(StatusDisabled, "", "")
	c.emit(ctx, ActivityEventToggleEnabled, state, "", nil)
	return Outcome{Kind: OutcomeToggled, State: state}
}

func (c *AuthController) login(ctx context.Context) Outcome {
	scopes := []string{c.clientID}

	result, err := c.client.LoginPopup(ctx, scopes)
	if err != nil {
		return c.fail(ctx, ActivityEventLoginFailure, "login_popup", err)
	}

	token, err := c.client.AcquireTokenSilent(ctx, scopes, c.authority)
	if err != nil {
		return c.fail(ctx, ActivityEventLoginFailure, "acquire_token_silent", err)
	}

	if token == "" {
		return c.fail(ctx, ActivityEventLoginFailure, "acquire_token_silent", ErrEmptyAccessToken)
	}

	account := ""
	if result != nil {
		account = result.Account.DisplayName()
	}

	state := c.store.setStatus(StatusLoggedIn, token, account)
	c.logger.Info("Login succeeded", "account", account)
	c.emit(ctx, ActivityEventLoginSuccess, state, "", nil)

	return Outcome{Kind: OutcomeLoggedIn, State: state}
}

func (c *AuthController) logout(ctx context.Context) Outcome {
	if err := c.client.Logout(ctx); err != nil {
		return c.fail(ctx, ActivityEventLogoutFailure, "logout", err)
	}

	state := c.store.setStatus(StatusLoggedOut, "", "")
	c.logger.Info("Logout succeeded")
	c.emit(ctx, ActivityEventLogoutSuccess, state, "", nil)

	return Outcome{Kind: OutcomeLoggedOut, State: state}
}

func (c *AuthController) fail(ctx context.Context, eventType ActivityEventType, operation string, err error) Outcome {
	msg := ResponseMessage(err)
	state := c.store.setResponse(msg)

	c.logger.Error("Auth attempt failed", "operation", operation, "error", err)
	c.emit(ctx, eventType, state, msg, map[string]any{"operation": operation})

	return Outcome{Kind: OutcomeFailed, State: state, Err: err}
}

func (c *AuthController) outcome(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, State: c.store.Snapshot(), Err: err}
}

func (c *AuthController) emit(ctx context.Context, eventType ActivityEventType, state AuthState, msg string, metadata map[string]any) {
	event := ActivityEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Status:     state.Status,
		Account:    state.Account,
		Message:    msg,
		Metadata:   metadata,
		OccurredAt: c.now().UTC(),
	}

	if err := c.activity.Record(ctx, event); err != nil {
		c.logger.Error("Failed to record activity", "event", eventType, "error", err)
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, errors.CategoryInternal, err.Error()).
			WithTextCode(TextCodeCollaboratorPanic)
	}
	return errors.New(fmt.Sprint(r), errors.CategoryInternal).
		WithTextCode(TextCodeCollaboratorPanic).
		WithCode(errors.CodeInternal)
}
