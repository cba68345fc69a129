// Package instruments loads the provider's instrument reference data and
// answers symbol lookups and equity-universe queries over it.
package instruments

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"equity-screener/internal/model"
)

// Load reads a JSON array of instruments from path. Files ending in .gz are
// decompressed on the fly.
func Load(path string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instruments: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gunzip instruments %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return Decode(r)
}

// Decode parses a JSON array of instruments.
func Decode(r io.Reader) ([]model.Instrument, error) {
	var list []model.Instrument
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	return list, nil
}
