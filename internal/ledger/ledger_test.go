package ledger_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ecocycle/internal/domain"
	"ecocycle/internal/ledger"
	"ecocycle/internal/testsupport"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func balanceOf(t *testing.T, gdb *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	w, err := ledger.WalletByUser(gdb, userID)
	require.NoError(t, err)
	return w.Balance
}

func TestCreditAndDebit(t *testing.T) {
	gdb := testsupport.NewDB(t)
	u := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Credit(tx, u.Wallet.ID, d("30"), domain.TxReward, "scan:1")
		return err
	})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, gdb, u.ID).Equal(d("30")))

	err = gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Debit(tx, u.Wallet.ID, d("12.5"), domain.TxWithdrawal, "")
		return err
	})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, gdb, u.ID).Equal(d("17.5")))

	var txs []domain.Transaction
	require.NoError(t, gdb.Order("id").Find(&txs).Error)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxReward, txs[0].Type)
	require.NotNil(t, txs[0].Reference)
	assert.Equal(t, "scan:1", *txs[0].Reference)
	assert.Nil(t, txs[1].Reference)
	assert.Equal(t, u.Wallet.ID, *txs[1].FromWalletID)
}

func TestCreditRejectsDuplicateReference(t *testing.T) {
	gdb := testsupport.NewDB(t)
	u := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)

	credit := func() error {
		return gdb.Transaction(func(tx *gorm.DB) error {
			_, err := ledger.Credit(tx, u.Wallet.ID, d("50"), domain.TxAdjustment, "promo-1")
			return err
		})
	}
	require.NoError(t, credit())
	assert.ErrorIs(t, credit(), ledger.ErrDuplicateReference)
	assert.True(t, balanceOf(t, gdb, u.ID).Equal(d("50")))

	applied, err := ledger.Applied(gdb, "promo-1")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestDebitInsufficientFundsRollsBack(t *testing.T) {
	gdb := testsupport.NewDB(t)
	u := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Debit(tx, u.Wallet.ID, d("1"), domain.TxWithdrawal, "")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	var n int64
	require.NoError(t, gdb.Model(&domain.Transaction{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, balanceOf(t, gdb, u.ID).IsZero())
}

func TestInvalidAmountsAndMissingWallet(t *testing.T) {
	gdb := testsupport.NewDB(t)

	_, err := ledger.Credit(gdb, 1, decimal.Zero, domain.TxReward, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = ledger.Debit(gdb, 1, d("-5"), domain.TxWithdrawal, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	err = gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Credit(tx, 999, d("5"), domain.TxReward, "")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	_, err = ledger.WalletByUser(gdb, 999)
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestTransfer(t *testing.T) {
	gdb := testsupport.NewDB(t)
	ada := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)
	bola := testsupport.CreateUser(t, gdb, "bola@example.com", domain.RoleUser)

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Credit(tx, ada.Wallet.ID, d("100"), domain.TxReward, "")
		return err
	}))

	rec, err := ledger.Transfer(gdb, ada.ID, bola.ID, d("40"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxTransfer, rec.Type)
	assert.True(t, balanceOf(t, gdb, ada.ID).Equal(d("60")))
	assert.True(t, balanceOf(t, gdb, bola.ID).Equal(d("40")))

	_, err = ledger.Transfer(gdb, ada.ID, bola.ID, d("61"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.True(t, balanceOf(t, gdb, bola.ID).Equal(d("40")))

	_, err = ledger.Transfer(gdb, ada.ID, ada.ID, d("1"))
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)

	_, err = ledger.Transfer(gdb, ada.ID, 999, d("1"))
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	gdb := testsupport.NewDB(t)
	u := domain.User{Email: "new@example.com", Password: "x"}
	require.NoError(t, gdb.Create(&u).Error)

	w1, err := ledger.EnsureWallet(gdb, u.ID)
	require.NoError(t, err)
	w2, err := ledger.EnsureWallet(gdb, u.ID)
	require.NoError(t, err)

	assert.Equal(t, w1.ID, w2.ID)
	assert.Equal(t, domain.DefaultCurrency, w2.Currency)
}

func TestConcurrentCreditsAndDebits(t *testing.T) {
	gdb := testsupport.NewFileDB(t)
	u := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- gdb.Transaction(func(tx *gorm.DB) error {
				_, err := ledger.Credit(tx, u.Wallet.ID, d("10"), domain.TxReward, fmt.Sprintf("scan:%d", i))
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.True(t, balanceOf(t, gdb, u.ID).Equal(d("200")))

	// 30 withdrawals of 10 against 200: exactly 20 may succeed
	var ok, short int
	var mu sync.Mutex
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gdb.Transaction(func(tx *gorm.DB) error {
				_, err := ledger.Debit(tx, u.Wallet.ID, d("10"), domain.TxWithdrawal, "")
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrInsufficientFunds):
				short++
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ok)
	assert.Equal(t, 10, short)
	assert.True(t, balanceOf(t, gdb, u.ID).IsZero())
}

func TestConcurrentTransfersConserveFunds(t *testing.T) {
	gdb := testsupport.NewFileDB(t)
	ada := testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)
	bola := testsupport.CreateUser(t, gdb, "bola@example.com", domain.RoleUser)
	for _, u := range []domain.User{ada, bola} {
		require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
			_, err := ledger.Credit(tx, u.Wallet.ID, d("100"), domain.TxAdjustment, "")
			return err
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := ada.ID, bola.ID
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := ledger.Transfer(gdb, from, to, d("7"))
			if err != nil && !errors.Is(err, ledger.ErrInsufficientFunds) {
				t.Errorf("unexpected transfer error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	total := balanceOf(t, gdb, ada.ID).Add(balanceOf(t, gdb, bola.ID))
	assert.True(t, total.Equal(d("200")), "total %s", total)
	assert.False(t, balanceOf(t, gdb, ada.ID).IsNegative())
	assert.False(t, balanceOf(t, gdb, bola.ID).IsNegative())
}
