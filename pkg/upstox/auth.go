package upstox

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Token is the authorization-code exchange response.
type Token struct {
	Email         string   `json:"email"`
	UserID        string   `json:"user_id"`
	UserName      string   `json:"user_name"`
	Broker        string   `json:"broker"`
	Exchanges     []string `json:"exchanges"`
	Products      []string `json:"products"`
	UserType      string   `json:"user_type"`
	IsActive      bool     `json:"is_active"`
	AccessToken   string   `json:"access_token"`
	ExtendedToken string   `json:"extended_token"`
}

// LoginURL returns the browser URL that starts the OAuth flow. After
// consent the provider redirects to RedirectURL with ?code=...
func (c *Client) LoginURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.apiKey)
	q.Set("redirect_uri", c.redirectURL)
	if state != "" {
		q.Set("state", state)
	}
	return c.baseURL + routes["login.dialog"] + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for an access token and
// installs it on the client.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, errors.New("upstox: empty authorization code")
	}
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)
	form.Set("redirect_uri", c.redirectURL)
	form.Set("grant_type", "authorization_code")

	var tok Token
	if err := c.do(ctx, http.MethodPost, routes["login.token"], form, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("upstox: token response without access_token")
	}
	c.SetAccessToken(tok.AccessToken)
	return &tok, nil
}
