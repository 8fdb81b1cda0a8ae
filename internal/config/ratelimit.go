package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitFile is the YAML document pointed to by RATE_LIMIT_FILE:
//
//	tiers:
//	  api:
//	    window: 1m
//	    max_requests: 120
type RateLimitFile struct {
	Tiers map[string]RateLimitTier `yaml:"tiers"`
}

// RateLimitTier overrides one preset. Zero fields keep the default.
type RateLimitTier struct {
	Window      time.Duration `yaml:"-"`
	RawWindow   string        `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// LoadRateLimitFile parses path. An empty path yields no overrides.
func LoadRateLimitFile(path string) (*RateLimitFile, error) {
	if path == "" {
		return &RateLimitFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit file: %w", err)
	}
	return ParseRateLimits(data)
}

// ParseRateLimits decodes a rate-limit YAML document.
func ParseRateLimits(data []byte) (*RateLimitFile, error) {
	var f RateLimitFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rate limit file: %w", err)
	}
	for name, tier := range f.Tiers {
		if tier.RawWindow != "" {
			d, err := time.ParseDuration(tier.RawWindow)
			if err != nil {
				return nil, fmt.Errorf("rate limit tier %q: invalid window %q: %w", name, tier.RawWindow, err)
			}
			tier.Window = d
		}
		if tier.MaxRequests < 0 {
			return nil, fmt.Errorf("rate limit tier %q: max_requests must not be negative", name)
		}
		f.Tiers[name] = tier
	}
	return &f, nil
}

// RateLimitEnv reads RATE_LIMIT_<TIER>_WINDOW and RATE_LIMIT_<TIER>_MAX for
// each named tier. Tiers with neither variable set are left out. A malformed
// value is an error.
func RateLimitEnv(names ...string) (map[string]RateLimitTier, error) {
	out := make(map[string]RateLimitTier)
	for _, name := range names {
		prefix := "RATE_LIMIT_" + strings.ToUpper(name)
		var tier RateLimitTier
		set := false

		if v := os.Getenv(prefix + "_WINDOW"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("%s_WINDOW: invalid duration %q", prefix, v)
			}
			tier.RawWindow, tier.Window, set = v, d, true
		}
		if v := os.Getenv(prefix + "_MAX"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%s_MAX: invalid request count %q", prefix, v)
			}
			tier.MaxRequests, set = n, true
		}
		if set {
			out[name] = tier
		}
	}
	return out, nil
}
