package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/linkloop/auth-service/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProfile is the subset of the provider's userinfo response the
// session protocol needs.
type GoogleProfile struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
}

// GoogleProvider abstracts the authorization-code exchange so tests can
// substitute a stub for the real endpoint.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*GoogleProfile, error)
}

type googleProvider struct {
	conf *oauth2.Config
}

func NewGoogleProvider(cfg config.GoogleOAuthConfig) GoogleProvider {
	return &googleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (p *googleProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	resp, err := p.conf.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}

	return &GoogleProfile{
		ID:            info.Sub,
		Email:         info.Email,
		FirstName:     info.GivenName,
		LastName:      info.FamilyName,
		EmailVerified: info.EmailVerified,
	}, nil
}
