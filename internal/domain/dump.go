package domain

// Dump report statuses
const (
	DumpOpen    = "open"
	DumpCleared = "cleared"
)

// AnonymousReporter is stored when a dump is reported without signing in
const AnonymousReporter = "anonymous"

// DumpReport is an illegal dump site reported by the public
type DumpReport struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Location    string   `gorm:"size:255;not null" json:"location"`
	Description string   `gorm:"size:1000" json:"description"`
	WasteType   string   `gorm:"size:32" json:"waste_type"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Reporter    string   `gorm:"size:191" json:"reporter"`
	Status      string   `gorm:"size:16;index;default:open" json:"status"`
	CreatedAt   int64    `gorm:"autoCreateTime:milli;index" json:"created_at"`
	ClearedAt   *int64   `json:"cleared_at"`
}
