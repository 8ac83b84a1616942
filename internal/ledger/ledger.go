// Package ledger moves money between wallets. Every balance change is a
// single conditional UPDATE plus a Transaction row, so concurrent requests
// can never lose an update or push a balance below zero.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ecocycle/internal/domain"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrDuplicateReference = errors.New("reference already applied")
	ErrSelfTransfer       = errors.New("cannot transfer to yourself")
)

// EnsureWallet returns the user's wallet, creating an empty one if needed.
func EnsureWallet(db *gorm.DB, userID uint) (*domain.Wallet, error) {
	w := domain.Wallet{UserID: userID, Balance: decimal.Zero, Currency: domain.DefaultCurrency}
	if err := db.Where(domain.Wallet{UserID: userID}).FirstOrCreate(&w).Error; err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return &w, nil
}

// WalletByUser loads a user's wallet.
func WalletByUser(db *gorm.DB, userID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Credit adds amount to a wallet and records it. Must run inside a
// transaction: the record is written first so a duplicate reference
// aborts before the balance moves.
func Credit(tx *gorm.DB, walletID uint, amount decimal.Decimal, txType, reference string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	rec := domain.Transaction{ToWalletID: &walletID, Amount: amount, Type: txType, Reference: ref(reference)}
	if err := record(tx, &rec); err != nil {
		return nil, err
	}
	if err := add(tx, walletID, amount); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Debit removes amount from a wallet if the balance covers it.
func Debit(tx *gorm.DB, walletID uint, amount decimal.Decimal, txType, reference string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	rec := domain.Transaction{FromWalletID: &walletID, Amount: amount, Type: txType, Reference: ref(reference)}
	if err := record(tx, &rec); err != nil {
		return nil, err
	}
	if err := subtract(tx, walletID, amount); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Transfer moves amount between two users' wallets in one transaction.
func Transfer(db *gorm.DB, fromUserID, toUserID uint, amount decimal.Decimal) (*domain.Transaction, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfTransfer
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	var rec domain.Transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		from, err := WalletByUser(tx, fromUserID)
		if err != nil {
			return err
		}
		to, err := WalletByUser(tx, toUserID)
		if err != nil {
			return err
		}
		if err := subtract(tx, from.ID, amount); err != nil {
			return err
		}
		if err := add(tx, to.ID, amount); err != nil {
			return err
		}
		rec = domain.Transaction{FromWalletID: &from.ID, ToWalletID: &to.ID, Amount: amount, Type: domain.TxTransfer}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Applied reports whether a reference has already been recorded.
func Applied(db *gorm.DB, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var n int64
	if err := db.Model(&domain.Transaction{}).Where("reference = ?", reference).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func record(tx *gorm.DB, rec *domain.Transaction) error {
	if rec.Reference != nil {
		applied, err := Applied(tx, *rec.Reference)
		if err != nil {
			return err
		}
		if applied {
			return ErrDuplicateReference
		}
	}
	if err := tx.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func add(tx *gorm.DB, walletID uint, amount decimal.Decimal) error {
	res := tx.Model(&domain.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("credit wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func subtract(tx *gorm.DB, walletID uint, amount decimal.Decimal) error {
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("debit wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&domain.Wallet{}).Where("id = ?", walletID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrWalletNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
