package instruments

import (
	"fmt"
	"strings"

	"equity-screener/internal/model"
)

// equityTypes are the instrument types counted as listed equities.
var equityTypes = map[string]bool{"EQ": true, "SM": true}

// IsEquity reports whether in is a cash-segment equity.
func IsEquity(in model.Instrument) bool {
	return equityTypes[strings.ToUpper(strings.TrimSpace(in.InstrumentType))]
}

// Table is an in-memory symbol index. It is read-only after NewTable and
// safe for concurrent lookups.
type Table struct {
	byKey map[string]model.Instrument
	all   []model.Instrument
}

// NewTable indexes list by (symbol, exchange). When a pair occurs more than
// once the first equity row wins, else the first row.
func NewTable(list []model.Instrument) *Table {
	t := &Table{byKey: make(map[string]model.Instrument, len(list)), all: list}
	for _, in := range list {
		sym := in.Symbol()
		if sym == "" || in.Key == "" {
			continue
		}
		k := model.LookupKey(sym, in.Exchange)
		prev, ok := t.byKey[k]
		if ok && (IsEquity(prev) || !IsEquity(in)) {
			continue
		}
		t.byKey[k] = in
	}
	return t
}

// Resolve returns the instrument key for (symbol, exchange). Both sides are
// trimmed and upper-cased before matching.
func (t *Table) Resolve(symbol, exchange string) (string, error) {
	in, ok := t.byKey[model.LookupKey(symbol, exchange)]
	if !ok {
		return "", fmt.Errorf("%s on %s: %w", model.NormalizeSymbol(symbol), model.NormalizeSymbol(exchange), model.ErrResolution)
	}
	return in.Key, nil
}

// Len returns the number of indexed (symbol, exchange) pairs.
func (t *Table) Len() int { return len(t.byKey) }

// Equities returns the equity universe of the table, see Equities.
func (t *Table) Equities(exchanges []string) []model.Listing {
	return Equities(t.all, exchanges)
}

// Equities keeps EQ and SM instruments whose exchange starts with any of
// the given prefixes (all exchanges when none are given). Rows missing a
// symbol, exchange or type are skipped; duplicates collapse to one listing.
func Equities(list []model.Instrument, exchanges []string) []model.Listing {
	prefixes := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		if e = model.NormalizeSymbol(e); e != "" {
			prefixes = append(prefixes, e)
		}
	}

	seen := make(map[string]bool)
	var out []model.Listing
	for _, in := range list {
		sym := model.NormalizeSymbol(in.TradingSymbol)
		exch := model.NormalizeSymbol(in.Exchange)
		if sym == "" || exch == "" || !IsEquity(in) {
			continue
		}
		if !matchesPrefix(exch, prefixes) {
			continue
		}
		k := model.LookupKey(sym, exch)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, model.Listing{Symbol: sym, Exchange: exch})
	}
	return out
}

func matchesPrefix(exch string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(exch, p) {
			return true
		}
	}
	return false
}
