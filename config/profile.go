package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"equity-screener/internal/cluster"
	"equity-screener/internal/model"
	"equity-screener/internal/scan"
)

// Profile is the YAML scan profile. Fields left out of the file keep the
// DefaultProfile values.
type Profile struct {
	// Exchanges filters the instrument universe by prefix, e.g. ["NSE"].
	Exchanges []string `yaml:"exchanges"`
	// Symbols, when set, replaces the instrument universe. Entries are
	// "EXCHANGE:SYMBOL" or a bare symbol on the first exchange.
	Symbols []string `yaml:"symbols"`

	Granularity    string        `yaml:"granularity"`
	Interval       int           `yaml:"interval"`
	LookbackDays   int           `yaml:"lookback_days"`
	WarmupSessions int           `yaml:"warmup_sessions"`
	Accuracy       float64       `yaml:"accuracy"` // percent
	Mode           string        `yaml:"mode"`     // past | live
	Sets           []cluster.Set `yaml:"sets"`
	Workers        int           `yaml:"workers"`
	Throttle       time.Duration `yaml:"throttle"`
}

// DefaultProfile scans NSE daily bars over the last five days at 0.2%.
func DefaultProfile() Profile {
	return Profile{
		Exchanges:      []string{"NSE"},
		Granularity:    string(model.Days),
		Interval:       1,
		LookbackDays:   5,
		WarmupSessions: 10,
		Accuracy:       0.2,
		Mode:           "past",
		Sets:           []cluster.Set{cluster.ThreeEMA, cluster.FourEMA},
		Workers:        4,
		Throttle:       100 * time.Millisecond,
	}
}

// LoadProfile reads path over DefaultProfile and validates the result.
// An empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, p.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile from YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile validation failed: %w", err)
	}
	return p, nil
}

// Validate checks every field by building the scan options.
func (p Profile) Validate() error {
	if len(p.Exchanges) == 0 && len(p.Symbols) == 0 {
		return fmt.Errorf("profile needs exchanges or symbols: %w", model.ErrInvalidParameter)
	}
	if p.Throttle < 0 {
		return fmt.Errorf("throttle %v must not be negative: %w", p.Throttle, model.ErrInvalidParameter)
	}
	if _, err := p.Listings(); err != nil {
		return err
	}
	_, err := p.Options()
	return err
}

// Options converts the profile into validated scan options.
func (p Profile) Options() (scan.Options, error) {
	g, err := model.ParseGranularity(p.Granularity)
	if err != nil {
		return scan.Options{}, err
	}
	mode, err := cluster.ParseMode(p.Mode)
	if err != nil {
		return scan.Options{}, err
	}
	opts := scan.Options{
		Granularity:    g,
		Interval:       p.Interval,
		LookbackDays:   p.LookbackDays,
		WarmupSessions: p.WarmupSessions,
		Accuracy:       p.Accuracy,
		Mode:           mode,
		Sets:           append([]cluster.Set(nil), p.Sets...),
		Workers:        p.Workers,
		Throttle:       p.Throttle,
	}
	if err := opts.Validate(); err != nil {
		return scan.Options{}, err
	}
	return opts, nil
}

// Listings parses Symbols. It returns nil when the profile has none.
func (p Profile) Listings() ([]model.Listing, error) {
	if len(p.Symbols) == 0 {
		return nil, nil
	}
	defExch := "NSE"
	if len(p.Exchanges) > 0 {
		defExch = p.Exchanges[0]
	}
	out := make([]model.Listing, 0, len(p.Symbols))
	for _, s := range p.Symbols {
		l, err := ParseListing(s, defExch)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// ParseListing parses "EXCHANGE:SYMBOL" or a bare symbol on defExch.
func ParseListing(s, defExch string) (model.Listing, error) {
	exch, sym, ok := strings.Cut(s, ":")
	if !ok {
		exch, sym = defExch, s
	}
	exch, sym = model.NormalizeSymbol(exch), model.NormalizeSymbol(sym)
	if exch == "" || sym == "" {
		return model.Listing{}, fmt.Errorf("listing %q: %w", s, model.ErrInvalidParameter)
	}
	return model.Listing{Symbol: sym, Exchange: exch}, nil
}
