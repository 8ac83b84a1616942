package domain

import "github.com/shopspring/decimal"

// Scan statuses
const (
	ScanCredited   = "credited"    // Reward paid, item still with the user
	ScanDroppedOff = "dropped_off" // Item delivered to a center
)

// Scan is one classified photo and the reward it produced
type Scan struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	UserID         uint            `gorm:"not null;uniqueIndex:idx_scans_user_key,priority:1" json:"user_id"`
	IdempotencyKey *string         `gorm:"size:64;uniqueIndex:idx_scans_user_key,priority:2" json:"-"`
	Category       string          `gorm:"size:32" json:"category"`
	Class          string          `gorm:"size:32" json:"class"`
	Confidence     float64         `json:"confidence"`
	Recyclable     bool            `json:"recyclable"`
	PricePerKg     decimal.Decimal `gorm:"type:decimal(10,2)" json:"price_per_kg"`
	WeightKg       decimal.Decimal `gorm:"type:decimal(10,3)" json:"weight_kg"`
	Reward         decimal.Decimal `gorm:"type:decimal(20,2)" json:"reward"`
	Reasoning      string          `gorm:"size:512" json:"reasoning"`
	Model          string          `gorm:"size:128" json:"model"`
	ImageRef       string          `gorm:"size:255" json:"image_ref,omitempty"`
	Status         string          `gorm:"size:16;default:credited" json:"status"`
	CreatedAt      int64           `gorm:"autoCreateTime:milli;index" json:"created_at"`
}
