package model

import "time"

// BlockedAsset is a symbol the broker recently refused to trade.
// There is at most one row per symbol; re-blocking refreshes ExpiresAt.
type BlockedAsset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"size:32;not null;uniqueIndex" json:"symbol"`
	Reason    string    `gorm:"size:255" json:"reason"`
	BlockedAt time.Time `gorm:"not null" json:"blocked_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the registry table name stable.
func (BlockedAsset) TableName() string {
	return "blocked_assets"
}

// IsActive reports whether the block still applies at now.
func (b BlockedAsset) IsActive(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}
