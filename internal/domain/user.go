package domain

// Roles
const (
	RoleUser  = "user"  // Regular recycler
	RoleAdmin = "admin" // Moderator / operator
)

// User Model
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`                                         // Primary key
	Email       string `gorm:"size:191;unique;not null" json:"email"`                        // Unique, lowercase email
	Password    string `gorm:"not null" json:"-"`                                            // Hashed password
	DisplayName string `gorm:"size:100" json:"display_name"`                                 // Optional name shown on the dashboard
	Role        string `gorm:"size:16;default:user" json:"role"`                             // Role: user or admin
	LastActive  int64  `gorm:"index" json:"last_active"`                                     // Last heartbeat in milliseconds
	CreatedAt   int64  `gorm:"autoCreateTime:milli" json:"created_at"`                       // Timestamp of creation in milliseconds
	Wallet      Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"wallet"` // One-to-one relationship with Wallet
}

// IsAdmin reports whether the user may use the admin endpoints
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
