// Package redis keeps the broker access token in Redis so every screener
// invocation of the day reuses one OAuth login.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const defaultTokenKey = "screener:upstox:token"

// ErrNoToken is returned by Load when no unexpired token is stored.
var ErrNoToken = errors.New("no stored access token")

// Config configures the Redis token store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Key      string // default: screener:upstox:token
}

// Token is the stored credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	SavedAt     time.Time `json:"saved_at"`
}

// TokenStore saves and loads the access token under a single key whose
// Redis TTL matches the token's expiry.
type TokenStore struct {
	client *goredis.Client
	key    string
	log    *slog.Logger
	now    func() time.Time
}

// New connects and pings the server.
func New(cfg Config, log *slog.Logger) (*TokenStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Key == "" {
		cfg.Key = defaultTokenKey
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log = log.With(slog.String("component", "redis"))
	log.Info("connected", slog.String("addr", cfg.Addr))
	return &TokenStore{client: client, key: cfg.Key, log: log, now: time.Now}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *TokenStore) Client() *goredis.Client { return s.client }

// Save stores tok until expiresAt. An already-expired token is rejected.
func (s *TokenStore) Save(ctx context.Context, tok Token) error {
	now := s.now()
	ttl := tok.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("token already expired at %s", tok.ExpiresAt.Format(time.RFC3339))
	}
	tok.SavedAt = now
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.log.Info("token saved", slog.String("user_id", tok.UserID), slog.Time("expires_at", tok.ExpiresAt))
	return nil
}

// Load returns the stored token, or ErrNoToken.
func (s *TokenStore) Load(ctx context.Context) (Token, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return Token{}, fmt.Errorf("decode stored token: %w", err)
	}
	if !tok.ExpiresAt.After(s.now()) {
		return Token{}, ErrNoToken
	}
	return tok, nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the client.
func (s *TokenStore) Close() error {
	return s.client.Close()
}
