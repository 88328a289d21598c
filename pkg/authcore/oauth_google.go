package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// GoogleConfig configures the Google adapter. ClientIDs lists every
// audience an ID token may carry (web, iOS, Android clients).
type GoogleConfig struct {
	ClientIDs []string `env:"GOOGLE_OAUTH_CLIENT_IDS" envSeparator:","`
}

// GoogleAdapter verifies Google sign-in assertions. An assertion is
// normally an OIDC ID token; opaque access tokens are resolved through
// the userinfo endpoint instead.
type GoogleAdapter struct {
	provider  *oidc.Provider
	verifiers []*oidc.IDTokenVerifier
}

// NewGoogleAdapter discovers Google's OIDC configuration. It performs a
// network call and should be constructed once at startup.
func NewGoogleAdapter(ctx context.Context, cfg GoogleConfig) (*GoogleAdapter, error) {
	if len(cfg.ClientIDs) == 0 {
		return nil, fmt.Errorf("%w: google client ids", ErrMissingConfig)
	}
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}

	verifiers := make([]*oidc.IDTokenVerifier, len(cfg.ClientIDs))
	for i, clientID := range cfg.ClientIDs {
		verifiers[i] = provider.Verifier(&oidc.Config{ClientID: clientID})
	}
	return &GoogleAdapter{provider: provider, verifiers: verifiers}, nil
}

func (a *GoogleAdapter) Name() string { return "google" }

// Verify prefers the ID token, checking signature and audience against
// Google's JWKS; with only an access token it falls back to the userinfo
// endpoint.
func (a *GoogleAdapter) Verify(ctx context.Context, assertion OAuthAssertion) (OAuthIdentity, error) {
	var idErr error
	if assertion.IDToken != "" {
		identity, err := a.verifyIDToken(ctx, assertion.IDToken)
		if err == nil {
			return identity, nil
		}
		idErr = err
	}
	if assertion.AccessToken == "" {
		return OAuthIdentity{}, errors.Join(ErrInvalidAssertion, idErr)
	}
	identity, err := a.verifyAccessToken(ctx, assertion.AccessToken)
	if err != nil {
		return OAuthIdentity{}, errors.Join(ErrInvalidAssertion, idErr, err)
	}
	return identity, nil
}

func (a *GoogleAdapter) verifyIDToken(ctx context.Context, raw string) (OAuthIdentity, error) {
	var lastErr error
	for _, verifier := range a.verifiers {
		idToken, err := verifier.Verify(ctx, raw)
		if err != nil {
			lastErr = err
			continue
		}

		var claims struct {
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return OAuthIdentity{}, fmt.Errorf("google id token claims: %w", err)
		}
		return OAuthIdentity{
			Provider:          "google",
			ProviderAccountID: idToken.Subject,
			Email:             claims.Email,
			Name:              claims.Name,
			EmailVerified:     claims.EmailVerified,
		}, nil
	}
	return OAuthIdentity{}, lastErr
}

func (a *GoogleAdapter) verifyAccessToken(ctx context.Context, accessToken string) (OAuthIdentity, error) {
	userInfo, err := a.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("google userinfo: %w", err)
	}

	var claims struct {
		Name string `json:"name"`
	}
	_ = userInfo.Claims(&claims)

	return OAuthIdentity{
		Provider:          "google",
		ProviderAccountID: userInfo.Subject,
		Email:             userInfo.Email,
		Name:              claims.Name,
		EmailVerified:     userInfo.EmailVerified,
	}, nil
}
