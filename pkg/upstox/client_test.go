package upstox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:          "key",
		APISecret:       "secret",
		RedirectURL:     "http://localhost/cb",
		AccessToken:     "tok",
		BaseURL:         srv.URL,
		MaxRetries:      3,
		RetryInitial:    time.Millisecond,
		RetryMaxElapsed: time.Second,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

const candlesBody = `{"status":"success","data":{"candles":[
	["2025-10-03T00:00:00+05:30",1370.1,1380.5,1365.0,1375.2,5100000,0],
	["2025-10-01T00:00:00+05:30",1360,1371,1355.5,1369.9,4800000,0]
]}}`

func TestHistoricalCandles_PathAndParse(t *testing.T) {
	var gotPath, gotAuth, gotVersion string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Api-Version")
		fmt.Fprint(w, candlesBody)
	})

	rows, err := c.HistoricalCandles(context.Background(), "NSE_EQ|INE002A01018", "days", 1, "2025-10-03", "2025-09-26")
	require.NoError(t, err)
	assert.Equal(t, "/v3/historical-candle/NSE_EQ%7CINE002A01018/days/1/2025-10-03/2025-09-26", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, apiVersion, gotVersion)

	require.Len(t, rows, 2)
	assert.Equal(t, 1375.2, rows[0].Close)
	assert.Equal(t, 5100000.0, rows[0].Volume)
	assert.Equal(t, 2025, rows[0].Time.Year())
	assert.Equal(t, time.October, rows[0].Time.Month())
	assert.Equal(t, 3, rows[0].Time.Day())
	_, off := rows[0].Time.Zone()
	assert.Equal(t, 5*3600+1800, off)
}

func TestHistoricalCandles_NoFromDate(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{"status":"success","data":{"candles":[]}}`)
	})
	rows, err := c.HistoricalCandles(context.Background(), "BSE_EQ|INE009A01021", "weeks", 1, "2025-10-03", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, "/v3/historical-candle/BSE_EQ%7CINE009A01021/weeks/1/2025-10-03", gotPath)
}

func TestIntradayCandles_Path(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{"status":"success","data":{"candles":[["2025-10-03T11:15:00+05:30",1,2,0.5,1.5,100,7]]}}`)
	})
	rows, err := c.IntradayCandles(context.Background(), "NSE_EQ|X", "minutes", 15)
	require.NoError(t, err)
	assert.Equal(t, "/v3/historical-candle/intraday/NSE_EQ%7CX/minutes/15", gotPath)
	require.Len(t, rows, 1)
	assert.Equal(t, 7.0, rows[0].OpenInterest)
	assert.Equal(t, 11, rows[0].Time.Hour())
}

func TestDo_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"status":"error","errors":[{"errorCode":"UDAPI10005","message":"Too many requests"}]}`)
			return
		}
		fmt.Fprint(w, candlesBody)
	})
	rows, err := c.HistoricalCandles(context.Background(), "NSE_EQ|X", "days", 1, "2025-10-03", "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_GivesUpOnRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.HistoricalCandles(context.Background(), "NSE_EQ|X", "days", 1, "2025-10-03", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyRequests))
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls)) // first try + 3 retries
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","errors":[{"errorCode":"UDAPI1021","message":"Instrument key is invalid"}]}`)
	})
	_, err := c.HistoricalCandles(context.Background(), "bogus", "days", 1, "2025-10-03", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "UDAPI1021", apiErr.Code)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type countingBreaker struct {
	open  bool
	calls int
}

func (b *countingBreaker) Execute(fn func() error) error {
	b.calls++
	if b.open {
		return errors.New("open")
	}
	return fn()
}

func TestDo_OpenBreakerStopsRetries(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	br := &countingBreaker{open: true}
	c.breaker = br

	_, err := c.HistoricalCandles(context.Background(), "NSE_EQ|X", "days", 1, "2025-10-03", "")
	require.EqualError(t, err, "open")
	assert.Equal(t, 1, br.calls)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestLoginURL(t *testing.T) {
	c := NewClient(Config{APIKey: "abc", RedirectURL: "http://127.0.0.1:5000/callback"})
	u, err := url.Parse(c.LoginURL(""))
	require.NoError(t, err)
	assert.Equal(t, "api.upstox.com", u.Host)
	assert.Equal(t, "/v2/login/authorization/dialog", u.Path)
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "abc", u.Query().Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:5000/callback", u.Query().Get("redirect_uri"))
	assert.False(t, u.Query().Has("state"))
}

func TestExchangeCode(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/login/authorization/token", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"))
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		fmt.Fprint(w, `{"email":"a@b.c","user_id":"U1","user_name":"A","exchanges":["NSE","BSE"],"access_token":"fresh","is_active":true}`)
	})

	tok, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, []string{"NSE", "BSE"}, tok.Exchanges)
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "key", form.Get("client_id"))
	assert.Equal(t, "secret", form.Get("client_secret"))
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "fresh", c.accessToken)
}

func TestExchangeCode_Empty(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.ExchangeCode(context.Background(), "")
	assert.Error(t, err)
}

func TestCandleUnmarshal_ShortRow(t *testing.T) {
	var c Candle
	assert.Error(t, c.UnmarshalJSON([]byte(`["2025-10-03T00:00:00+05:30",1,2]`)))
}
