package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// PostgresStore persists the trade ledger in a trades table. Schema:
//
//	CREATE TABLE trades (
//	    id         BIGSERIAL PRIMARY KEY,
//	    instrument TEXT        NOT NULL,
//	    action     TEXT        NOT NULL,
//	    qty        DOUBLE PRECISION NOT NULL,
//	    price      DOUBLE PRECISION NOT NULL,
//	    ts         TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore wraps an open sqlx handle with per-query timeouts.
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// Append inserts a filled trade.
func (s *PostgresStore) Append(ctx context.Context, trade domain.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO trades (instrument, action, qty, price, ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := s.db.QueryRowxContext(ctx, query,
		trade.Instrument, trade.Action, trade.Quantity, trade.Price, trade.Timestamp).
		Scan(&trade.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate trade: %w", err)
		}
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// List returns matching trades in fill order. A positive limit keeps
// the newest trades, matching MemoryStore. Failures wrap
// domain.ErrLedgerRead so the position gate can fail closed on them.
func (s *PostgresStore) List(ctx context.Context, instrument string, limit int) ([]domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args := listQuery(instrument, limit)
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query trades: %v", domain.ErrLedgerRead, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.StructScan(&t); err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", domain.ErrLedgerRead, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trades: %v", domain.ErrLedgerRead, err)
	}
	return trades, nil
}

// listQuery builds the List statement. The limited form selects the
// newest rows in a subquery and re-orders them ascending, so both
// ledger backends return the same slice for the same call.
func listQuery(instrument string, limit int) (string, []interface{}) {
	query := `SELECT id, instrument, action, qty, price, ts FROM trades`
	args := []interface{}{}
	if instrument != "" {
		query += ` WHERE instrument = $1`
		args = append(args, instrument)
	}
	if limit > 0 {
		query = fmt.Sprintf(
			`SELECT * FROM (%s ORDER BY ts DESC, id DESC LIMIT $%d) latest ORDER BY ts ASC, id ASC`,
			query, len(args)+1)
		args = append(args, limit)
		return query, args
	}
	return query + ` ORDER BY ts ASC, id ASC`, args
}
