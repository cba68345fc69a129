package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"equity-screener/internal/auth"
	"equity-screener/internal/breaker"
	"equity-screener/internal/candles"
	"equity-screener/internal/instruments"
	"equity-screener/internal/metrics"
	"equity-screener/internal/model"
	"equity-screener/internal/notification"
	redisstore "equity-screener/internal/store/redis"
	sqlitestore "equity-screener/internal/store/sqlite"
	"equity-screener/pkg/upstox"
)

// openTokenStore returns nil when Redis is not configured or unreachable.
func openTokenStore() *redisstore.TokenStore {
	if cfg.RedisAddr == "" {
		return nil
	}
	st, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, log)
	if err != nil {
		log.Warn("redis unavailable, continuing without token store", slog.Any("err", err))
		return nil
	}
	return st
}

func newAuthService(client *upstox.Client, st *redisstore.TokenStore) *auth.Service {
	if st == nil {
		return auth.NewService(client, nil, log)
	}
	return auth.NewService(client, st, log)
}

func newClient(token string, br upstox.Breaker) *upstox.Client {
	return upstox.NewClient(upstox.Config{
		APIKey:      cfg.UpstoxAPIKey,
		APISecret:   cfg.UpstoxAPISecret,
		RedirectURL: cfg.UpstoxRedirectURL,
		AccessToken: token,
		BaseURL:     cfg.UpstoxBaseURL,
		Timeout:     cfg.HTTPTimeout,
		Debug:       cfg.LogLevel == "debug",
		Breaker:     br,
		Logger:      log,
	})
}

func newProviderBreaker(m *metrics.Metrics, health *metrics.HealthStatus) *breaker.Breaker {
	br := breaker.New(5, 30*time.Second)
	br.IsFailure = upstox.IsTransient
	br.OnStateChange = func(from, to breaker.State) {
		log.Warn("provider circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
		if m != nil {
			m.BreakerState.Set(float64(to))
			if to == breaker.Open {
				m.BreakerTrips.Inc()
			}
		}
		if health != nil {
			health.SetBreakerState(to.String())
		}
	}
	return br
}

// refData is the instrument reference table behind whichever backend is
// configured: SQLite when SQLITE_PATH is set, else the JSON dump.
type refData struct {
	resolver candles.Resolver
	equities func(ctx context.Context, exchanges []string) ([]model.Listing, error)
	db       *sql.DB // nil for the in-memory table
	close    func() error
}

func openRefData(ctx context.Context) (*refData, error) {
	if cfg.SQLitePath != "" {
		st, err := sqlitestore.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		n, err := st.Count(ctx)
		if err != nil {
			st.Close()
			return nil, err
		}
		if n == 0 {
			st.Close()
			return nil, errors.New("instrument store is empty: run `screener instruments import` first")
		}
		return &refData{resolver: st, equities: st.Equities, db: st.DB(), close: st.Close}, nil
	}

	list, err := instruments.Load(cfg.InstrumentsPath)
	if err != nil {
		return nil, fmt.Errorf("%w (set INSTRUMENTS_PATH or SQLITE_PATH)", err)
	}
	tbl := instruments.NewTable(list)
	log.Info("instruments loaded", slog.String("path", cfg.InstrumentsPath), slog.Int("pairs", tbl.Len()))
	return &refData{
		resolver: tbl,
		equities: func(_ context.Context, exchanges []string) ([]model.Listing, error) {
			return tbl.Equities(exchanges), nil
		},
		close: func() error { return nil },
	}, nil
}

// runtime is everything a data command needs: an authenticated client
// behind the breaker, the reference data and the optional side services.
type runtime struct {
	metrics   *metrics.Metrics
	health    *metrics.HealthStatus
	server    *metrics.Server
	tokens    *redisstore.TokenStore
	ref       *refData
	assembler *candles.Assembler
	notifier  notification.Notifier
}

func setup(ctx context.Context) (*runtime, error) {
	rt := &runtime{
		metrics: metrics.New(),
		health:  metrics.NewHealthStatus(),
		tokens:  openTokenStore(),
	}

	token, err := newAuthService(newClient("", nil), rt.tokens).AccessToken(ctx, cfg.UpstoxAccessToken)
	if err != nil {
		rt.Close()
		return nil, err
	}

	ref, err := openRefData(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.ref = ref

	br := newProviderBreaker(rt.metrics, rt.health)
	client := newClient(token, br)
	rt.assembler = candles.NewAssembler(ref.resolver, candles.NewUpstoxSource(client), log)

	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.TelegramEnabled() {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	rt.notifier = notifiers

	if cfg.MetricsAddr != "" {
		rt.server = metrics.NewServer(cfg.MetricsAddr, rt.metrics, rt.health, log)
		rt.server.Start()

		var rdb *goredis.Client
		if rt.tokens != nil {
			rdb = rt.tokens.Client()
		}
		rt.health.StartLivenessChecker(ctx, rdb, ref.db, 15*time.Second)
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rt.server.Stop(ctx)
		cancel()
	}
	if rt.ref != nil {
		if err := rt.ref.close(); err != nil {
			log.Warn("close reference data", slog.Any("err", err))
		}
	}
	if rt.tokens != nil {
		rt.tokens.Close()
	}
}
