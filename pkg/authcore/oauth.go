package authcore

import (
	"context"
	"strings"
)

// OAuthAssertion is what a client obtained from a provider on the device.
// Google sign-in supplies an ID token (access token optional); Facebook
// supplies an access token only. RefreshToken, when the provider issued
// one, is stored alongside the linked account but never verified.
type OAuthAssertion struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

func (a OAuthAssertion) empty() bool {
	return a.AccessToken == "" && a.IDToken == ""
}

// OAuthIdentity is the provider-verified identity extracted from an
// assertion. ProviderAccountID is the provider's stable subject, never
// the email.
type OAuthIdentity struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Name              string
	EmailVerified     bool
}

// ProviderAdapter verifies a client-supplied assertion directly with the
// provider.
type ProviderAdapter interface {
	Name() string
	Verify(ctx context.Context, assertion OAuthAssertion) (OAuthIdentity, error)
}

// OAuthVerifier routes assertions to the registered provider adapters.
type OAuthVerifier struct {
	adapters map[string]ProviderAdapter
}

// NewOAuthVerifier registers the given adapters, keyed by lowercase name.
func NewOAuthVerifier(adapters ...ProviderAdapter) *OAuthVerifier {
	m := make(map[string]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Name())] = a
	}
	return &OAuthVerifier{adapters: m}
}

// Verify validates the assertion with the named provider. Unknown
// providers fail with ErrUnsupportedProvider; identities without an
// email fail with ErrNoProviderEmail because account linking keys on it.
func (v *OAuthVerifier) Verify(ctx context.Context, provider string, assertion OAuthAssertion) (OAuthIdentity, error) {
	adapter, ok := v.adapters[strings.ToLower(provider)]
	if !ok {
		return OAuthIdentity{}, ErrUnsupportedProvider
	}
	if assertion.empty() {
		return OAuthIdentity{}, ErrInvalidAssertion
	}
	identity, err := adapter.Verify(ctx, assertion)
	if err != nil {
		return OAuthIdentity{}, err
	}
	if identity.ProviderAccountID == "" {
		return OAuthIdentity{}, ErrInvalidAssertion
	}
	if identity.Email == "" {
		return OAuthIdentity{}, ErrNoProviderEmail
	}
	identity.Provider = strings.ToLower(provider)
	return identity, nil
}

// Providers lists the registered provider names.
func (v *OAuthVerifier) Providers() []string {
	names := make([]string, 0, len(v.adapters))
	for name := range v.adapters {
		names = append(names, name)
	}
	return names
}
