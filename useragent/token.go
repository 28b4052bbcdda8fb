package useragent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	jackson "github.com/goliatone/go-jackson"
)

// expirySkew makes cached tokens expire before the provider says so.
const expirySkew = 5 * time.Minute

// Token is a token endpoint response.
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scopes       []string
	ExpiresAt    time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (a *Application) exchangeCode(ctx context.Context, code, verifier string, scopes []string) (*Token, error) {
	form := url.Values{
		"client_id":     {a.config.ClientID},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {a.config.RedirectURL},
		"code_verifier": {verifier},
		"scope":         {strings.Join(scopes, " ")},
	}
	return a.postToken(ctx, "exchange", a.config.TokenURL, form)
}

func (a *Application) refresh(ctx context.Context, tokenURL, refreshToken string, scopes []string) (*Token, error) {
	form := url.Values{
		"client_id":     {a.config.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(scopes, " ")},
	}
	return a.postToken(ctx, "refresh", tokenURL, form)
}

func (a *Application) postToken(ctx context.Context, operation, endpoint string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.config.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, providerError(operation, resp.StatusCode, "invalid_response", "failed to decode token response", err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return nil, providerError(operation, resp.StatusCode, tr.Error, tr.ErrorDesc, nil)
	}
	if tr.AccessToken == "" {
		return nil, providerError(operation, resp.StatusCode, "missing_access_token", "missing access token", nil)
	}

	tok := &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		TokenType:    tr.TokenType,
		Scopes:       strings.Fields(tr.Scope),
	}
	if tr.ExpiresIn > 0 {
		tok.ExpiresAt = a.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// scopeKey is order independent.
func scopeKey(scopes []string) string {
	s := append([]string(nil), scopes...)
	sort.Strings(s)
	return strings.Join(s, " ")
}

type cacheEntry struct {
	accessToken string
	expiresAt   time.Time
}

// tokenCache keeps access tokens per scope set plus the latest refresh token.
type tokenCache struct {
	mu           sync.Mutex
	entries      map[string]cacheEntry
	refreshToken string
	account      *jackson.Account
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: map[string]cacheEntry{}}
}

func (c *tokenCache) store(scopes []string, tok *Token, account *jackson.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok.ExpiresAt.IsZero() {
		// nothing to reuse safely
		delete(c.entries, scopeKey(scopes))
	} else {
		c.entries[scopeKey(scopes)] = cacheEntry{
			accessToken: tok.AccessToken,
			expiresAt:   tok.ExpiresAt.Add(-expirySkew),
		}
	}
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	if account != nil {
		acc := *account
		c.account = &acc
	}
}

func (c *tokenCache) lookup(scopes []string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[scopeKey(scopes)]
	if !ok || !now.Before(e.expiresAt) {
		return "", false
	}
	return e.accessToken, true
}

func (c *tokenCache) credentials() (*jackson.Account, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil {
		return nil, c.refreshToken
	}
	acc := *c.account
	return &acc, c.refreshToken
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	c.entries = map[string]cacheEntry{}
	c.refreshToken = ""
	c.account = nil
	c.mu.Unlock()
}
