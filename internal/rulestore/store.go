// Package rulestore holds the per-instrument strategy rule blobs. Rules
// are opaque versioned text replaced whole: a write either validates and
// lands atomically or is rejected, leaving the prior rule active.
package rulestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sawpanic/tradepulse/internal/strategy"
)

// Store is the strategy store contract.
type Store interface {
	// GetRule returns the active rule for an instrument.
	GetRule(ctx context.Context, instrument string) (string, error)

	// PutRule validates and replaces an instrument's rule. Invalid
	// rules are rejected and the previous rule remains active.
	PutRule(ctx context.Context, instrument, rule string) error
}

// MemoryStore is an in-process rule store for paper mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]string
}

// NewMemoryStore creates a rule store seeded with the given rules. The
// seed is not validated; it is the operator's responsibility, matching
// config-file loading.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	rules := make(map[string]string, len(seed))
	for k, v := range seed {
		rules[k] = v
	}
	return &MemoryStore{rules: rules}
}

// GetRule returns the active rule for an instrument.
func (m *MemoryStore) GetRule(_ context.Context, instrument string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[instrument]
	if !ok {
		return "", fmt.Errorf("no rule configured for %s", instrument)
	}
	return rule, nil
}

// PutRule validates and replaces the rule for an instrument.
func (m *MemoryStore) PutRule(_ context.Context, instrument, rule string) error {
	if err := strategy.ValidateRule(rule); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[instrument] = rule
	return nil
}
