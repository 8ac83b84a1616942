package domain

import "github.com/shopspring/decimal"

// Transaction types
const (
	TxReward     = "reward"     // Credit earned by a scan
	TxAdjustment = "adjustment" // Manual credit by an admin
	TxTransfer   = "transfer"   // Wallet to wallet
	TxWithdrawal = "withdrawal" // Cash-out debit
)

// Transaction Model
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`                         // Primary key
	FromWalletID *uint           `gorm:"index" json:"from_wallet_id"`                  // Foreign key to Wallet of the sender
	ToWalletID   *uint           `gorm:"index" json:"to_wallet_id"`                    // Foreign key to Wallet of the receiver
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`    // Amount of the transaction
	Type         string          `gorm:"size:16;index" json:"type"`                    // Transaction type
	Reference    *string         `gorm:"size:128;uniqueIndex" json:"reference"`        // Idempotency reference, unique when set
	CreatedAt    int64           `gorm:"autoCreateTime:milli;index" json:"created_at"` // Timestamp of creation in milliseconds
}
