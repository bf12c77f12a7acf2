package config

import "sync/atomic"

// Live holds the current configuration snapshot. Readers take one snapshot per
// cycle; a symbol change swaps in a new Config instead of mutating the old one.
type Live struct {
	p atomic.Pointer[Config]
}

// NewLive wraps an initial configuration.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.p.Store(cfg)
	return l
}

// Get returns the current snapshot.
func (l *Live) Get() *Config { return l.p.Load() }

// SwitchSymbol installs a copy of the current config targeting symbol.
func (l *Live) SwitchSymbol(symbol string) (*Config, error) {
	for {
		cur := l.p.Load()
		next, err := cur.WithSymbol(symbol)
		if err != nil {
			return nil, err
		}
		if l.p.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}
