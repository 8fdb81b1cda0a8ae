package ratelimit

import (
	"fmt"
	"time"
)

// Tier names accepted by Tiers.Get and Tiers.Override.
const (
	TierAuth      = "auth"
	TierAPI       = "api"
	TierExpensive = "expensive"
	TierSensitive = "sensitive"
)

// Tiers groups the named presets used by the router.
type Tiers struct {
	Auth      Config
	API       Config
	Expensive Config
	Sensitive Config
}

// DefaultTiers: auth 5 per 15 minutes, api 60/min, expensive 10/min,
// sensitive 5/min.
func DefaultTiers() Tiers {
	return Tiers{
		Auth:      Config{Window: 15 * time.Minute, MaxRequests: 5},
		API:       Config{Window: time.Minute, MaxRequests: 60},
		Expensive: Config{Window: time.Minute, MaxRequests: 10},
		Sensitive: Config{Window: time.Minute, MaxRequests: 5},
	}
}

// TierNames lists every preset name in a fixed order.
func TierNames() []string {
	return []string{TierAuth, TierAPI, TierExpensive, TierSensitive}
}

func (t *Tiers) slot(name string) (*Config, error) {
	switch name {
	case TierAuth:
		return &t.Auth, nil
	case TierAPI:
		return &t.API, nil
	case TierExpensive:
		return &t.Expensive, nil
	case TierSensitive:
		return &t.Sensitive, nil
	}
	return nil, fmt.Errorf("unknown rate limit tier %q", name)
}

// Get returns the named preset.
func (t Tiers) Get(name string) (Config, error) {
	c, err := t.slot(name)
	if err != nil {
		return Config{}, err
	}
	return *c, nil
}

// Override replaces the non-zero fields of the named preset.
func (t *Tiers) Override(name string, cfg Config) error {
	c, err := t.slot(name)
	if err != nil {
		return err
	}
	if cfg.Window < 0 || cfg.MaxRequests < 0 {
		return fmt.Errorf("rate limit tier %q: window and max_requests must not be negative", name)
	}
	if cfg.Window > 0 {
		c.Window = cfg.Window
	}
	if cfg.MaxRequests > 0 {
		c.MaxRequests = cfg.MaxRequests
	}
	return nil
}
