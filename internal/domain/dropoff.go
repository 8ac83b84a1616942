package domain

import "github.com/shopspring/decimal"

// DropOffConfirmed is the only status a drop-off is recorded with
const DropOffConfirmed = "confirmed"

// DropOff records a scanned item delivered to a collection center
type DropOff struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	CenterID  string          `gorm:"size:64;index;not null" json:"center_id"`
	ScanID    string          `gorm:"size:36;uniqueIndex;not null" json:"scan_id"`
	WasteType string          `gorm:"size:32" json:"waste_type"`
	WeightKg  decimal.Decimal `gorm:"type:decimal(10,3)" json:"weight_kg"`
	Earnings  decimal.Decimal `gorm:"type:decimal(20,2)" json:"earnings"`
	Status    string          `gorm:"size:16" json:"status"`
	CreatedAt int64           `gorm:"autoCreateTime:milli" json:"created_at"`
}
