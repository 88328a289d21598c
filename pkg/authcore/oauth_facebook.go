package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

// FacebookConfig configures the Facebook adapter.
type FacebookConfig struct {
	AppID     string `env:"FACEBOOK_APP_ID"`
	AppSecret string `env:"FACEBOOK_APP_SECRET"`
}

// FacebookAdapter verifies Facebook access tokens through the Graph API
// debug_token endpoint, then fetches the profile from /me.
type FacebookAdapter struct {
	appID    string
	appToken string
	graphURL string
	client   *http.Client
}

// NewFacebookAdapter builds the adapter. The app access token is the
// documented "app_id|app_secret" form, so no network call is needed here.
func NewFacebookAdapter(cfg FacebookConfig) (*FacebookAdapter, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("%w: facebook app credentials", ErrMissingConfig)
	}
	return &FacebookAdapter{
		appID:    cfg.AppID,
		appToken: cfg.AppID + "|" + cfg.AppSecret,
		graphURL: facebookGraphURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *FacebookAdapter) Name() string { return "facebook" }

// SetGraphURL overrides the Graph API base URL, e.g. to point at a test
// server.
func (a *FacebookAdapter) SetGraphURL(baseURL string) { a.graphURL = baseURL }

// Verify confirms the access token was issued for this app and is still
// valid, then resolves the user's profile.
func (a *FacebookAdapter) Verify(ctx context.Context, assertion OAuthAssertion) (OAuthIdentity, error) {
	if assertion.AccessToken == "" {
		return OAuthIdentity{}, ErrInvalidAssertion
	}
	debug, err := a.debugToken(ctx, assertion.AccessToken)
	if err != nil {
		return OAuthIdentity{}, err
	}
	if !debug.IsValid || debug.AppID != a.appID {
		return OAuthIdentity{}, ErrInvalidAssertion
	}

	profile, err := a.fetchProfile(ctx, assertion.AccessToken)
	if err != nil {
		return OAuthIdentity{}, err
	}
	if profile.ID != debug.UserID {
		return OAuthIdentity{}, ErrInvalidAssertion
	}

	return OAuthIdentity{
		Provider:          "facebook",
		ProviderAccountID: profile.ID,
		Email:             profile.Email,
		Name:              profile.Name,
		// Facebook only returns emails it has confirmed.
		EmailVerified: profile.Email != "",
	}, nil
}

type facebookTokenDebug struct {
	AppID   string `json:"app_id"`
	UserID  string `json:"user_id"`
	IsValid bool   `json:"is_valid"`
}

func (a *FacebookAdapter) debugToken(ctx context.Context, token string) (facebookTokenDebug, error) {
	q := url.Values{}
	q.Set("input_token", token)
	q.Set("access_token", a.appToken)

	var payload struct {
		Data facebookTokenDebug `json:"data"`
	}
	if err := a.getJSON(ctx, a.graphURL+"/debug_token?"+q.Encode(), &payload); err != nil {
		return facebookTokenDebug{}, err
	}
	return payload.Data, nil
}

type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *FacebookAdapter) fetchProfile(ctx context.Context, token string) (facebookProfile, error) {
	q := url.Values{}
	q.Set("fields", "id,name,email")
	q.Set("access_token", token)

	var profile facebookProfile
	if err := a.getJSON(ctx, a.graphURL+"/me?"+q.Encode(), &profile); err != nil {
		return facebookProfile{}, err
	}
	return profile, nil
}

func (a *FacebookAdapter) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("facebook graph request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("facebook graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(ErrInvalidAssertion, fmt.Errorf("facebook graph status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("facebook graph response: %w", err)
	}
	return nil
}
