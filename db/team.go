package db

import "time"

// TeamRecord is a cached copy of a team as last returned by the API.
type TeamRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"index" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
	CachedAt    time.Time `json:"cachedAt"`
}

// MemberRecord is a cached team membership.
type MemberRecord struct {
	TeamID   string `gorm:"primaryKey" json:"teamId"`
	UserID   string `gorm:"primaryKey" json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role"`
}
