package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryUpdateWalletMarginCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	seeded := seedUser(t, db, "1000")
	user, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)

	updated, err := repo.UpdateWalletMargin(ctx, user, d("900"), d("9000"))
	require.NoError(t, err)
	assert.True(t, updated.Wallet.Equal(d("900")))
	assert.True(t, updated.Margin.Equal(d("9000")))
	assert.Equal(t, user.Version+1, updated.Version)

	// user still carries the old version
	_, err = repo.UpdateWalletMargin(ctx, user, d("1"), d("1"))
	assert.ErrorIs(t, err, ErrUserVersionConflict)
}

func TestUserRepositoryCreditWalletBumpsVersion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	seeded := seedUser(t, db, "10")
	before, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)

	after, err := repo.CreditWallet(ctx, seeded.ID, d("2.5"))
	require.NoError(t, err)
	assert.True(t, after.Wallet.Equal(d("12.5")), "wallet=%s", after.Wallet)
	assert.Equal(t, before.Version+1, after.Version)

	// a close computed from the pre-credit snapshot must not overwrite the credit
	_, err = repo.UpdateWalletMargin(ctx, before, d("0"), d("0"))
	assert.ErrorIs(t, err, ErrUserVersionConflict)

	_, err = repo.CreditWallet(ctx, 999999, d("1"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryWatchlist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user := seedUser(t, db, "0")

	require.NoError(t, repo.AddSymbol(ctx, user.ID, "RELIANCE"))
	require.NoError(t, repo.AddSymbol(ctx, user.ID, "TCS"))
	assert.ErrorIs(t, repo.AddSymbol(ctx, user.ID, "TCS"), ErrSymbolExists)

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.HasSymbol("RELIANCE"))
	assert.True(t, loaded.HasSymbol("TCS"))

	removed, err := repo.RemoveSymbol(ctx, user.ID, "TCS")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveSymbol(ctx, user.ID, "TCS")
	require.NoError(t, err)
	assert.False(t, removed)

	missing, err := repo.FindByID(ctx, 424242)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
