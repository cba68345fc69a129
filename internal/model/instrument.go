package model

import "strings"

// Instrument represents one row of the broker's instrument reference data.
type Instrument struct {
	Key            string  `json:"instrument_key"` // opaque id, e.g. "NSE_EQ|INE002A01018"
	Exchange       string  `json:"exchange"`
	Segment        string  `json:"segment"`
	TradingSymbol  string  `json:"trading_symbol"`
	AssetSymbol    string  `json:"asset_symbol"`
	Name           string  `json:"name"`
	InstrumentType string  `json:"instrument_type"` // EQ, SM, FUT, CE, PE ...
	ISIN           string  `json:"isin"`
	LotSize        float64 `json:"lot_size"`
	TickSize       float64 `json:"tick_size"`
}

// Symbol returns the normalized trading symbol, falling back to the asset
// symbol for rows that only carry the latter.
func (i *Instrument) Symbol() string {
	if s := NormalizeSymbol(i.TradingSymbol); s != "" {
		return s
	}
	return NormalizeSymbol(i.AssetSymbol)
}

// LookupKey returns a unique lookup key for a (symbol, exchange) pair: "EXCHANGE:SYMBOL".
func LookupKey(symbol, exchange string) string {
	return NormalizeSymbol(exchange) + ":" + NormalizeSymbol(symbol)
}

// NormalizeSymbol trims and upper-cases a symbol or exchange name.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Listing is one entry of a scan universe.
type Listing struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}
