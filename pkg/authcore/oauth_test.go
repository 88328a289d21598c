package authcore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/authcore"
)

func TestOAuthVerifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	good := stubAdapter{name: "Google", identity: authcore.OAuthIdentity{
		ProviderAccountID: "sub-1",
		Email:             "a@example.com",
	}}
	broken := stubAdapter{name: "facebook", err: errors.New("provider down")}
	verifier := authcore.NewOAuthVerifier(good, broken)

	assert.ElementsMatch(t, []string{"google", "facebook"}, verifier.Providers())

	t.Run("provider names are case insensitive", func(t *testing.T) {
		t.Parallel()
		identity, err := verifier.Verify(ctx, "GOOGLE", authcore.OAuthAssertion{IDToken: "x"})
		require.NoError(t, err)
		assert.Equal(t, "google", identity.Provider)
		assert.Equal(t, "sub-1", identity.ProviderAccountID)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		_, err := verifier.Verify(ctx, "github", authcore.OAuthAssertion{IDToken: "x"})
		require.ErrorIs(t, err, authcore.ErrUnsupportedProvider)
	})

	t.Run("empty assertion", func(t *testing.T) {
		t.Parallel()
		_, err := verifier.Verify(ctx, "google", authcore.OAuthAssertion{})
		require.ErrorIs(t, err, authcore.ErrInvalidAssertion)
	})

	t.Run("adapter error propagates", func(t *testing.T) {
		t.Parallel()
		_, err := verifier.Verify(ctx, "facebook", authcore.OAuthAssertion{AccessToken: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, authcore.ErrUnsupportedProvider)
	})
}

func TestOAuthVerifier_RejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assertion := authcore.OAuthAssertion{AccessToken: "x"}

	noSubject := authcore.NewOAuthVerifier(stubAdapter{
		name:     "google",
		identity: authcore.OAuthIdentity{Email: "a@example.com"},
	})
	_, err := noSubject.Verify(ctx, "google", assertion)
	require.ErrorIs(t, err, authcore.ErrInvalidAssertion)

	noEmail := authcore.NewOAuthVerifier(stubAdapter{
		name:     "google",
		identity: authcore.OAuthIdentity{ProviderAccountID: "sub-1"},
	})
	_, err = noEmail.Verify(ctx, "google", assertion)
	require.ErrorIs(t, err, authcore.ErrNoProviderEmail)
}

func TestNewFacebookAdapter_Config(t *testing.T) {
	t.Parallel()

	_, err := authcore.NewFacebookAdapter(authcore.FacebookConfig{})
	require.ErrorIs(t, err, authcore.ErrMissingConfig)

	adapter, err := authcore.NewFacebookAdapter(authcore.FacebookConfig{
		AppID: "123", AppSecret: "shh",
	})
	require.NoError(t, err)
	assert.Equal(t, "facebook", adapter.Name())
}

func TestFacebookAdapter_Verify(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/debug_token", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("input_token")
		resp := map[string]any{"data": map[string]any{
			"app_id":   "123",
			"user_id":  "fb-user-1",
			"is_valid": token == "good-token",
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "fb-user-1",
			"name":  "FB User",
			"email": "fb@example.com",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	adapter, err := authcore.NewFacebookAdapter(authcore.FacebookConfig{AppID: "123", AppSecret: "shh"})
	require.NoError(t, err)
	adapter.SetGraphURL(server.URL)

	ctx := context.Background()

	identity, err := adapter.Verify(ctx, authcore.OAuthAssertion{AccessToken: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, "fb-user-1", identity.ProviderAccountID)
	assert.Equal(t, "fb@example.com", identity.Email)
	assert.Equal(t, "FB User", identity.Name)
	assert.True(t, identity.EmailVerified)

	_, err = adapter.Verify(ctx, authcore.OAuthAssertion{AccessToken: "bad-token"})
	require.ErrorIs(t, err, authcore.ErrInvalidAssertion)

	_, err = adapter.Verify(ctx, authcore.OAuthAssertion{IDToken: "only-id-token"})
	require.ErrorIs(t, err, authcore.ErrInvalidAssertion)
}
