package domain

import "github.com/shopspring/decimal"

// DefaultCurrency is the currency every reward is paid in
const DefaultCurrency = "NGN"

// Wallet Model
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	UserID    uint            `gorm:"uniqueIndex" json:"user_id"`                           // Foreign key to User
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"` // Wallet balance, never negative
	Currency  string          `gorm:"size:3;not null;default:NGN" json:"currency"`          // ISO currency code
	UpdatedAt int64           `gorm:"autoUpdateTime:milli" json:"updated_at"`               // Last change in milliseconds
}
