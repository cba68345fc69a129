// Package auth drives the broker's OAuth authorization-code login and
// keeps the resulting access token for later runs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"equity-screener/internal/markethours"
	tokenstore "equity-screener/internal/store/redis"
	"equity-screener/pkg/upstox"
)

// ErrNotLoggedIn is returned when no usable access token is available.
var ErrNotLoggedIn = errors.New("not logged in: run `screener auth login-url` then `screener auth exchange`")

// Provider is the slice of *upstox.Client used by the login flow.
type Provider interface {
	LoginURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*upstox.Token, error)
}

// Store persists tokens between runs. *redis.TokenStore implements it.
type Store interface {
	Save(ctx context.Context, tok tokenstore.Token) error
	Load(ctx context.Context) (tokenstore.Token, error)
}

// Service ties the provider and the optional store together.
type Service struct {
	provider Provider
	store    Store // may be nil
	log      *slog.Logger
	now      func() time.Time
}

func NewService(p Provider, s Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{provider: p, store: s, log: log.With(slog.String("component", "auth")), now: time.Now}
}

// LoginURL returns the consent page URL.
func (s *Service) LoginURL() string { return s.provider.LoginURL("") }

// Exchange trades an authorization code, or the full redirect URL carrying
// it, for an access token and saves it when a store is configured.
func (s *Service) Exchange(ctx context.Context, codeOrURL string) (tokenstore.Token, error) {
	code, err := ExtractCode(codeOrURL)
	if err != nil {
		return tokenstore.Token{}, err
	}
	resp, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return tokenstore.Token{}, fmt.Errorf("exchange code: %w", err)
	}
	tok := tokenstore.Token{
		AccessToken: resp.AccessToken,
		UserID:      resp.UserID,
		ExpiresAt:   TokenExpiry(s.now()),
	}
	s.log.Info("logged in", slog.String("user_id", resp.UserID), slog.Time("expires_at", tok.ExpiresAt))

	if s.store != nil {
		if err := s.store.Save(ctx, tok); err != nil {
			return tok, fmt.Errorf("save token: %w", err)
		}
	}
	return tok, nil
}

// AccessToken returns the stored token, falling back to static when the
// store is absent or empty.
func (s *Service) AccessToken(ctx context.Context, static string) (string, error) {
	if s.store != nil {
		tok, err := s.store.Load(ctx)
		switch {
		case err == nil:
			return tok.AccessToken, nil
		case errors.Is(err, tokenstore.ErrNoToken):
		default:
			s.log.Warn("token store unavailable", slog.Any("err", err))
		}
	}
	if static != "" {
		return static, nil
	}
	return "", ErrNotLoggedIn
}

// TokenExpiry returns when a token issued at now stops working: the next
// 03:30 IST.
func TokenExpiry(now time.Time) time.Time {
	ist := now.In(markethours.IST)
	exp := time.Date(ist.Year(), ist.Month(), ist.Day(), 3, 30, 0, 0, markethours.IST)
	if !ist.Before(exp) {
		exp = exp.AddDate(0, 0, 1)
	}
	return exp
}

// ExtractCode accepts either a bare authorization code or the redirect URL
// the browser landed on and returns the code.
func ExtractCode(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(s, "://") {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect url has no code parameter")
	}
	return code, nil
}

// TOTPCode generates the current one-time code for the broker login page.
func TOTPCode(secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("empty TOTP secret")
	}
	return totp.GenerateCode(secret, now)
}
