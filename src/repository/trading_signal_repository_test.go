package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/externalmodel"
)

func TestTradingSignalRepositoryFindSinceAndCount(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewTradingSignalRepository().WithDB(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	signals := []externalmodel.TradingSignal{
		{StrategyName: "momentum", Symbol: "AAPL", Score: decimal.RequireFromString("0.4"), GeneratedAt: base},
		{StrategyName: "momentum", Symbol: "AAPL", Score: decimal.RequireFromString("0.9"), GeneratedAt: base.Add(time.Hour)},
		{StrategyName: "momentum", Symbol: "MSFT", Score: decimal.RequireFromString("0.5"), GeneratedAt: base.Add(30 * time.Minute)},
		{StrategyName: "momentum", Symbol: "TSLA", Score: decimal.RequireFromString("0.7"), GeneratedAt: base.Add(-48 * time.Hour)},
		{StrategyName: "value", Symbol: "KO", Score: decimal.RequireFromString("1"), GeneratedAt: base},
	}
	require.NoError(t, db.Create(&signals).Error)

	got, err := repo.FindSince(ctx, "momentum", base.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, got[0].Score.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, "MSFT", got[1].Symbol)

	count, err := repo.CountSince(ctx, "momentum", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = repo.CountSince(ctx, "momentum", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTradingSignalRepositoryFindSinceQuery(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &TradingSignalRepository{db: mockDB}

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "strategy_signals" WHERE strategy_name = $1 AND generated_at >= $2 ORDER BY generated_at DESC, id DESC LIMIT $3`)).
		WithArgs("momentum", since, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "strategy_name", "symbol", "score", "generated_at"}).
			AddRow(2, "momentum", "AAPL", "0.9", since.Add(time.Hour)).
			AddRow(1, "momentum", "AAPL", "0.4", since))

	rows, err := repo.FindSince(context.Background(), "momentum", since, 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Score.Equal(decimal.RequireFromString("0.9")))
	require.NoError(t, mock.ExpectationsWereMet())
}
