package domain

import "github.com/shopspring/decimal"

// Marker colours shown on the map legend
const (
	MarkerAvailable  = "available"   // green, under half full
	MarkerHalfFull   = "half_full"   // orange
	MarkerNearlyFull = "nearly_full" // red, 80% and above
)

// Center is a drop-off point where recyclables are weighed and sold
type Center struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Address    string          `gorm:"size:255" json:"address"`
	Lat        float64         `json:"lat"`
	Lng        float64         `json:"lng"`
	CapacityKg decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"capacity_kg"`
	LoadKg     decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"load_kg"`
	UpdatedAt  int64           `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// Fullness returns the load as a percentage of capacity, clamped to [0, 100]
func (c Center) Fullness() float64 {
	if !c.CapacityKg.IsPositive() {
		return 100
	}
	pct := c.LoadKg.Div(c.CapacityKg).Mul(decimal.NewFromInt(100)).InexactFloat64()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Marker picks the legend colour for the current fullness
func (c Center) Marker() string {
	f := c.Fullness()
	switch {
	case f >= 80:
		return MarkerNearlyFull
	case f >= 50:
		return MarkerHalfFull
	default:
		return MarkerAvailable
	}
}

// CenterView is the JSON shape served to the map
type CenterView struct {
	Center
	Fullness float64 `json:"fullness"`
	Marker   string  `json:"marker"`
}

// View attaches the derived fields
func (c Center) View() CenterView {
	return CenterView{Center: c, Fullness: c.Fullness(), Marker: c.Marker()}
}
