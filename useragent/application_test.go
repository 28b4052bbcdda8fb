package useragent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jackson "github.com/goliatone/go-jackson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "3f1a2b4c-0000-4000-8000-00000000c11e"

var testSigningSecret = []byte("id-token-signing-secret")

type tokenServer struct {
	*httptest.Server
	mu    sync.Mutex
	forms []url.Values
	reply func(form url.Values) (int, map[string]any)
}

func newTokenServer(t *testing.T, reply func(form url.Values) (int, map[string]any)) *tokenServer {
	t.Helper()

	ts := &tokenServer{reply: reply}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tokenPath, r.URL.Path)
		assert.NoError(t, r.ParseForm())

		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		ts.mu.Unlock()

		status, body := ts.reply(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) Forms() []url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]url.Values(nil), ts.forms...)
}

func signIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = "test-key"
	raw, err := tok.SignedString(testSigningSecret)
	require.NoError(t, err)
	return raw
}

func defaultReply(t *testing.T) func(form url.Values) (int, map[string]any) {
	return func(form url.Values) (int, map[string]any) {
		switch form.Get("grant_type") {
		case "authorization_code":
			return http.StatusOK, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"scope":         testClientID + " openid profile",
				"id_token": signIDToken(t, jwt.MapClaims{
					"aud":                testClientID,
					"exp":                time.Now().Add(time.Hour).Unix(),
					"sub":                "subject-1",
					"oid":                "object-1",
					"tid":                "tenant-1",
					"name":               "Ada Lovelace",
					"preferred_username": "ada@example.com",
					"nonce":              strings.TrimPrefix(form.Get("code"), "auth-code."),
				}),
			}
		case "refresh_token":
			return http.StatusOK, map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			}
		}
		return http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"}
	}
}

// authCode carries the login nonce to the token server so the id token
// can echo it back.
func authCode(popup url.Values) string {
	return "auth-code." + popup.Get("nonce")
}

type loginResult struct {
	res *jackson.LoginResult
	err error
}

func newTestApp(t *testing.T, authority string, opts ...Option) (*Application, chan PopupRequest) {
	t.Helper()

	requests := make(chan PopupRequest, 4)
	opts = append([]Option{WithOpener(OpenerFunc(func(_ context.Context, req PopupRequest) {
		requests <- req
	}))}, opts...)

	app, err := New(Config{
		ClientID:              testClientID,
		Authority:             authority,
		RedirectURL:           "https://shell.example.com/auth/callback",
		PostLogoutRedirectURL: "https://shell.example.com/",
		StateEncryptionKey:    testEncKey,
		StateHMACKey:          testMacKey,
		PopupTimeout:          5 * time.Second,
	}, opts...)
	require.NoError(t, err)
	return app, requests
}

func startLogin(app *Application) chan loginResult {
	done := make(chan loginResult, 1)
	go func() {
		res, err := app.LoginPopup(context.Background(), []string{testClientID})
		done <- loginResult{res: res, err: err}
	}()
	return done
}

func awaitPopup(t *testing.T, requests chan PopupRequest) (PopupRequest, url.Values) {
	t.Helper()
	select {
	case req := <-requests:
		u, err := url.Parse(req.URL)
		require.NoError(t, err)
		return req, u.Query()
	case <-time.After(2 * time.Second):
		t.Fatal("popup was never opened")
	}
	return PopupRequest{}, nil
}

func awaitLogin(t *testing.T, done chan loginResult) loginResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("login never returned")
	}
	return loginResult{}
}

func TestNew_RequiresClientID(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrClientIDRequired)
}

func TestNew_DerivesEndpoints(t *testing.T) {
	app, err := New(Config{ClientID: testClientID})
	require.NoError(t, err)

	cfg := app.Config()
	assert.Equal(t, DefaultAuthority, cfg.Authority)
	assert.Equal(t, DefaultAuthority+"/oauth2/v2.0/authorize", cfg.AuthorizeURL)
	assert.Equal(t, DefaultAuthority+"/oauth2/v2.0/token", cfg.TokenURL)
	assert.Equal(t, DefaultAuthority+"/oauth2/v2.0/logout", cfg.LogoutURL)
	assert.Equal(t, DefaultPopupTimeout, cfg.PopupTimeout)
}

func TestLoginPopup_CompletesThroughCallback(t *testing.T) {
	ts := newTokenServer(t, defaultReply(t))
	app, requests := newTestApp(t, ts.URL)

	done := startLogin(app)
	req, q := awaitPopup(t, requests)

	assert.Equal(t, ActionLogin, req.Action)
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, req.Nonce, q.Get("nonce"))
	assert.Contains(t, q.Get("scope"), "offline_access")
	assert.Equal(t, 1, app.Pending())

	require.NoError(t, app.Complete(context.Background(), q.Get("state"), authCode(q), "", ""))

	r := awaitLogin(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "Ada Lovelace", r.res.Account.Name)
	assert.Equal(t, "ada@example.com", r.res.Account.Username)
	assert.Equal(t, "object-1", r.res.Account.HomeAccountID)
	assert.Equal(t, "tenant-1", r.res.Account.TenantID)
	assert.Equal(t, 0, app.Pending())

	forms := ts.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "authorization_code", forms[0].Get("grant_type"))
	assert.Equal(t, authCode(q), forms[0].Get("code"))
	assert.Equal(t, q.Get("code_challenge"), codeChallenge(forms[0].Get("code_verifier")))

	token, err := app.AcquireTokenSilent(context.Background(), []string{testClientID}, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Len(t, ts.Forms(), 1, "cached token must not hit the token endpoint")
}

func TestAcquireTokenSilent_RefreshesExpiredToken(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ts := newTokenServer(t, defaultReply(t))
	app, requests := newTestApp(t, ts.URL, WithClock(clock))

	done := startLogin(app)
	_, q := awaitPopup(t, requests)
	require.NoError(t, app.Complete(context.Background(), q.Get("state"), authCode(q), "", ""))
	require.NoError(t, awaitLogin(t, done).err)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	token, err := app.AcquireTokenSilent(context.Background(), []string{testClientID}, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	forms := ts.Forms()
	require.Len(t, forms, 2)
	assert.Equal(t, "refresh_token", forms[1].Get("grant_type"))
	assert.Equal(t, "refresh-1", forms[1].Get("refresh_token"))
}

func TestAcquireTokenSilent_LoginRequired(t *testing.T) {
	app, _ := newTestApp(t, "https://login.example.com/tenant")

	_, err := app.AcquireTokenSilent(context.Background(), []string{testClientID}, "")
	assert.ErrorIs(t, err, ErrLoginRequired)
}

func TestComplete_ProviderError(t *testing.T) {
	ts := newTokenServer(t, defaultReply(t))
	app, requests := newTestApp(t, ts.URL)

	done := startLogin(app)
	_, q := awaitPopup(t, requests)

	err := app.Complete(context.Background(), q.Get("state"), "", "access_denied", "the user cancelled")
	require.Error(t, err)
	assert.True(t, jackson.HasTextCode(err, TextCodeLoginFailed))

	r := awaitLogin(t, done)
	require.Error(t, r.err)
	assert.Equal(t, "login failed: the user cancelled", jackson.ResponseMessage(r.err))
	assert.Empty(t, ts.Forms())
}

func TestComplete_UnknownState(t *testing.T) {
	app, _ := newTestApp(t, "https://login.example.com/tenant")

	err := app.Complete(context.Background(), "garbage", "code", "", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	sc := NewEncryptedStateCodec(testEncKey, testMacKey, time.Minute)
	orphan, err := sc.Encode(&LoginState{Action: ActionLogin})
	require.NoError(t, err)

	err = app.Complete(context.Background(), orphan, "code", "", "")
	assert.True(t, jackson.HasTextCode(err, TextCodeInvalidState))
}

func TestLoginPopup_Timeout(t *testing.T) {
	app, err := New(Config{
		ClientID:     testClientID,
		Authority:    "https://login.example.com/tenant",
		PopupTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = app.LoginPopup(context.Background(), []string{testClientID})
	assert.ErrorIs(t, err, ErrPopupTimeout)
	assert.Equal(t, 0, app.Pending())
}

func TestLoginPopup_Cancel(t *testing.T) {
	app, requests := newTestApp(t, "https://login.example.com/tenant")

	done := startLogin(app)
	awaitPopup(t, requests)

	assert.Equal(t, 1, app.Cancel())
	assert.ErrorIs(t, awaitLogin(t, done).err, ErrPopupClosed)
}

func TestLoginPopup_ExchangeFailure(t *testing.T) {
	ts := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "AADSTS70008: code expired",
		}
	})
	app, requests := newTestApp(t, ts.URL)

	done := startLogin(app)
	_, q := awaitPopup(t, requests)
	require.NoError(t, app.Complete(context.Background(), q.Get("state"), "stale", "", ""))

	r := awaitLogin(t, done)
	require.Error(t, r.err)
	assert.True(t, jackson.HasTextCode(r.err, TextCodeTokenExchangeFail))
	assert.Equal(t, "token exchange failed: AADSTS70008: code expired", jackson.ResponseMessage(r.err))
}

func TestLoginPopup_VerifiesSignedIDToken(t *testing.T) {
	ts := newTokenServer(t, defaultReply(t))
	requests := make(chan PopupRequest, 1)

	verified, err := New(Config{
		ClientID:           testClientID,
		Authority:          ts.URL,
		RedirectURL:        "https://shell.example.com/auth/callback",
		StateEncryptionKey: testEncKey,
		StateHMACKey:       testMacKey,
		SigningKeys: map[string]SigningKey{
			"test-key": {Key: testSigningSecret, JWTAlg: jwt.SigningMethodHS256.Alg()},
		},
	}, WithOpener(OpenerFunc(func(_ context.Context, req PopupRequest) {
		requests <- req
	})))
	require.NoError(t, err)

	done := startLogin(verified)
	_, q := awaitPopup(t, requests)
	require.NoError(t, verified.Complete(context.Background(), q.Get("state"), authCode(q), "", ""))

	r := awaitLogin(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "Ada Lovelace", r.res.Account.DisplayName())
}

func TestIDTokenParser_RejectsWrongKey(t *testing.T) {
	parser, err := newIDTokenParser(Config{
		ClientID: testClientID,
		SigningKeys: map[string]SigningKey{
			"test-key": {Key: []byte("some-other-secret"), JWTAlg: jwt.SigningMethodHS256.Alg()},
		},
	}, noopLogger{})
	require.NoError(t, err)

	raw := signIDToken(t, jwt.MapClaims{
		"aud": testClientID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err = parser.parse(raw, "")
	assert.True(t, jackson.HasTextCode(err, TextCodeIDTokenInvalid))
}

func TestLogout_ClearsCacheAndPublishesEndSession(t *testing.T) {
	ts := newTokenServer(t, defaultReply(t))
	app, requests := newTestApp(t, ts.URL)

	done := startLogin(app)
	_, q := awaitPopup(t, requests)
	require.NoError(t, app.Complete(context.Background(), q.Get("state"), authCode(q), "", ""))
	require.NoError(t, awaitLogin(t, done).err)

	require.NoError(t, app.Logout(context.Background()))

	req, lq := awaitPopup(t, requests)
	assert.Equal(t, ActionLogout, req.Action)
	assert.Equal(t, "https://shell.example.com/", lq.Get("post_logout_redirect_uri"))

	_, err := app.AcquireTokenSilent(context.Background(), []string{testClientID}, ts.URL)
	assert.ErrorIs(t, err, ErrLoginRequired)
}

func TestIDTokenParser_RequiresNonce(t *testing.T) {
	parser, err := newIDTokenParser(Config{ClientID: testClientID}, noopLogger{})
	require.NoError(t, err)

	missing := signIDToken(t, jwt.MapClaims{"aud": testClientID, "sub": "subject-1"})
	_, err = parser.parse(missing, "expected-nonce")
	assert.True(t, jackson.HasTextCode(err, TextCodeIDTokenInvalid))

	wrong := signIDToken(t, jwt.MapClaims{"aud": testClientID, "nonce": "other"})
	_, err = parser.parse(wrong, "expected-nonce")
	assert.True(t, jackson.HasTextCode(err, TextCodeIDTokenInvalid))

	ok := signIDToken(t, jwt.MapClaims{"aud": testClientID, "sub": "subject-1", "nonce": "expected-nonce"})
	claims, err := parser.parse(ok, "expected-nonce")
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
}

func TestLoginPopup_RequestsConfiguredScopes(t *testing.T) {
	ts := newTokenServer(t, defaultReply(t))
	requests := make(chan PopupRequest, 4)
	app, err := New(Config{
		ClientID:           testClientID,
		Authority:          ts.URL,
		RedirectURL:        "https://shell.example.com/auth/callback",
		Scopes:             []string{"User.Read", "openid"},
		StateEncryptionKey: testEncKey,
		StateHMACKey:       testMacKey,
		PopupTimeout:       5 * time.Second,
	}, WithOpener(OpenerFunc(func(_ context.Context, req PopupRequest) {
		requests <- req
	})))
	require.NoError(t, err)

	done := startLogin(app)
	_, q := awaitPopup(t, requests)
	assert.Equal(t, testClientID+" User.Read openid profile offline_access", q.Get("scope"))

	require.NoError(t, app.Complete(context.Background(), q.Get("state"), authCode(q), "", ""))
	require.NoError(t, awaitLogin(t, done).err)

	forms := ts.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, q.Get("scope"), forms[0].Get("scope"))
}

func TestMergeScopes(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "openid", "profile", "offline_access"},
		mergeScopes([]string{"a", " ", "openid"}, DefaultScopes()),
	)
	assert.Equal(t, scopeKey([]string{"b", "a"}), scopeKey([]string{"a", "b"}))
}
