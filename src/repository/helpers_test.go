package repository

import (
	"context"
	"fmt"
	"testing"

	"positionledger/src/database"
	"positionledger/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newTestDB opens a private in-memory SQLite database with the full schema.
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

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func seedUser(t *testing.T, db *gorm.DB, wallet string) *model.User {
	t.Helper()
	user := &model.User{Mobile: uuid.NewString()[:12], Wallet: d(wallet)}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func seedPosition(t *testing.T, db *gorm.DB, userID uint, qty int64) *model.Position {
	t.Helper()
	position := &model.Position{
		UserID:        userID,
		StockName:     "NIFTY",
		StockType:     model.StockTypeOptions,
		IsNSE:         true,
		StockPrice:    d("100"),
		StockQuantity: qty,
		Type:          model.PositionTypeBuy,
		IsInteraday:   true,
		IsActive:      true,
	}
	require.NoError(t, NewPositionRepository(db).Create(context.Background(), position))
	return position
}
