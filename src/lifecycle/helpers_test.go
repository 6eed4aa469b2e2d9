package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"positionledger/src/database"
	"positionledger/src/ledger"
	"positionledger/src/margin"
	"positionledger/src/model"
	"positionledger/src/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		SQLitePath:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		GormLogLevel: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

type fixture struct {
	db         *gorm.DB
	positions  *repository.PositionRepository
	users      *repository.GormUserRepository
	txns       *repository.TransactionRepository
	exceptions *repository.ExceptionRepository
	cache      *MemoryCache
	manager    *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{
		db:         db,
		positions:  repository.NewPositionRepository(db),
		users:      repository.NewUserRepository(db),
		txns:       repository.NewTransactionRepository(db),
		exceptions: repository.NewExceptionRepository(db),
		cache:      NewMemoryCache(0),
	}
	f.manager = NewManager(f.positions, f.users, margin.NewCalculator(margin.DefaultLeverageTable()), ledger.New(f.txns)).
		WithCache(f.cache).
		WithExceptions(f.exceptions)

	return f
}

func (f *fixture) seedUser(t *testing.T, wallet string) *model.User {
	t.Helper()
	user := &model.User{Mobile: uuid.NewString()[:12], Wallet: d(wallet)}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) open(t *testing.T, user *model.User, stockType string, qty int64) *model.Position {
	t.Helper()
	position, err := f.manager.Open(context.Background(), user, model.OpenPositionPayload{
		IsNSE:         true,
		StockName:     "NIFTY",
		StockPrice:    d("100"),
		StockQuantity: qty,
		Type:          model.PositionTypeBuy,
		IsInteraday:   true,
		StockType:     stockType,
	})
	require.NoError(t, err)
	return position
}

func (f *fixture) reloadUser(t *testing.T, id uint) *model.User {
	t.Helper()
	user, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

// children returns the split-off records of parentID.
func (f *fixture) children(t *testing.T, parentID uint) []model.Position {
	t.Helper()
	var out []model.Position
	require.NoError(t, f.db.Where("parent_id = ?", parentID).Order("id").Find(&out).Error)
	return out
}
