package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradepulse/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func tradeRows(prices ...float64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "instrument", "action", "qty", "price", "ts"})
	for i, price := range prices {
		rows.AddRow(int64(i+1), "BTC-USD", "BUY", 1.0, price, time.Now())
	}
	return rows
}

func TestPostgresList_NoLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, instrument, action, qty, price, ts FROM trades WHERE instrument = $1 ORDER BY ts ASC, id ASC`).
		WithArgs("BTC-USD").
		WillReturnRows(tradeRows(100, 101, 102))

	trades, err := store.List(context.Background(), "BTC-USD", 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_LimitKeepsNewest(t *testing.T) {
	// The limited statement must select the newest rows and re-order
	// them ascending, the same slice MemoryStore returns for this call.
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT * FROM (SELECT id, instrument, action, qty, price, ts FROM trades WHERE instrument = $1 ORDER BY ts DESC, id DESC LIMIT $2) latest ORDER BY ts ASC, id ASC`).
		WithArgs("BTC-USD", 2).
		WillReturnRows(tradeRows(103, 104))

	trades, err := store.List(context.Background(), "BTC-USD", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.InDelta(t, 103.0, trades[0].Price, 1e-9)
	assert.InDelta(t, 104.0, trades[1].Price, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_LimitWithoutInstrument(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT * FROM (SELECT id, instrument, action, qty, price, ts FROM trades ORDER BY ts DESC, id DESC LIMIT $1) latest ORDER BY ts ASC, id ASC`).
		WithArgs(3).
		WillReturnRows(tradeRows(102, 103, 104))

	trades, err := store.List(context.Background(), "", 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_ErrorWrapsLedgerRead(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, instrument, action, qty, price, ts FROM trades ORDER BY ts ASC, id ASC`).
		WillReturnError(assert.AnError)

	_, err := store.List(context.Background(), "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLedgerRead)
}
