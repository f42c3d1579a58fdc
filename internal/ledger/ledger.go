// Package ledger is the record of filled trades and the derivation
// layer over it: current position and average entry price are computed
// from the fill history, never stored.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// Store is the trade ledger contract. Readers always see a consistent
// point-in-time snapshot: a List result never changes under a
// concurrent Append.
type Store interface {
	// Append records a filled trade.
	Append(ctx context.Context, trade domain.Trade) error

	// List returns trades oldest first. An empty instrument matches all
	// instruments; limit ≤ 0 means no limit.
	List(ctx context.Context, instrument string, limit int) ([]domain.Trade, error)
}

// Position derives the signed net quantity for an instrument from a
// point-in-time ledger read.
func Position(ctx context.Context, store Store, instrument string) (float64, error) {
	trades, err := store.List(ctx, instrument, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrLedgerRead, err)
	}
	return NetQuantity(trades), nil
}

// NetQuantity sums signed fill quantities: BUY adds, SELL subtracts.
func NetQuantity(trades []domain.Trade) float64 {
	qty := 0.0
	for _, t := range trades {
		switch t.Action {
		case domain.ActionBuy:
			qty += t.Quantity
		case domain.ActionSell:
			qty -= t.Quantity
		}
	}
	return qty
}

// MemoryStore is an in-process ledger used by paper mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []domain.Trade
	nextID int64
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append records a trade, assigning a monotonic ID.
func (m *MemoryStore) Append(_ context.Context, trade domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, trade)
	return nil
}

// List returns a copy of matching trades, oldest first.
func (m *MemoryStore) List(_ context.Context, instrument string, limit int) ([]domain.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		if instrument != "" && t.Instrument != instrument {
			continue
		}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
