// Package useragent implements the identity client used by the shell: an
// OAuth2 authorization code client with PKCE for Azure AD style authorities.
//
// An interactive login publishes an authorize URL through an Opener and
// blocks until the provider redirect is handed to Complete:
//
//	app, err := useragent.New(useragent.Config{
//		ClientID:    clientID,
//		Authority:   authority,
//		RedirectURL: "https://example.com/auth/callback",
//	}, useragent.WithOpener(opener))
//
// Tokens are cached per scope set; AcquireTokenSilent serves from the cache
// and falls back to the refresh token grant.
package useragent
