package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/model"
)

func openTestStore(t *testing.T) *InstrumentStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "instruments.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var rows = []model.Instrument{
	{Key: "NSE_EQ|INE002A01018", Exchange: "NSE", Segment: "NSE_EQ", TradingSymbol: "RELIANCE", InstrumentType: "EQ"},
	{Key: "NSE_EQ|INE467B01029", Exchange: "NSE", Segment: "NSE_EQ", TradingSymbol: "TCS", InstrumentType: "EQ"},
	{Key: "BSE_EQ|INE467B01029", Exchange: "BSE", Segment: "BSE_EQ", TradingSymbol: "TCS", InstrumentType: "SM"},
	{Key: "NSE_INDEX|Nifty 50", Exchange: "NSE", AssetSymbol: "NIFTY", InstrumentType: "INDEX"},
	{Key: "NSE_FO|1", Exchange: "NSE_FO", TradingSymbol: "TCS FUT", InstrumentType: "FUT"},
	{Key: "", Exchange: "NSE", TradingSymbol: "NOKEY", InstrumentType: "EQ"},
}

func TestImportAndResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.ImportInstruments(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	key, err := s.Resolve(" tcs", "bse ")
	require.NoError(t, err)
	assert.Equal(t, "BSE_EQ|INE467B01029", key)

	key, err = s.Resolve("NIFTY", "NSE")
	require.NoError(t, err)
	assert.Equal(t, "NSE_INDEX|Nifty 50", key)

	_, err = s.Resolve("NOKEY", "NSE")
	assert.True(t, errors.Is(err, model.ErrResolution))
}

func TestImport_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ImportInstruments(ctx, rows)
	require.NoError(t, err)
	_, err = s.ImportInstruments(ctx, rows)
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestResolve_PrefersEquity(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ImportInstruments(context.Background(), []model.Instrument{
		{Key: "NSE_INDEX|X", Exchange: "NSE", TradingSymbol: "X", InstrumentType: "INDEX"},
		{Key: "NSE_EQ|X", Exchange: "NSE", TradingSymbol: "X", InstrumentType: "EQ"},
	})
	require.NoError(t, err)

	key, err := s.Resolve("X", "NSE")
	require.NoError(t, err)
	assert.Equal(t, "NSE_EQ|X", key)
}

func TestEquities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.ImportInstruments(ctx, rows)
	require.NoError(t, err)

	got, err := s.Equities(ctx, []string{"NSE"})
	require.NoError(t, err)
	assert.Equal(t, []model.Listing{
		{Symbol: "RELIANCE", Exchange: "NSE"},
		{Symbol: "TCS", Exchange: "NSE"},
	}, got)

	all, err := s.Equities(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
