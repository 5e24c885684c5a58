package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Token is the persisted session: the bearer access token and the refresh
// credential the server handed out as a cookie. There is at most one row.
type Token struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Username     string    `json:"username,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const sessionRowID = 1

// upsertToken writes token into the single session row.
func upsertToken(gdb *gorm.DB, token *Token) error {
	token.ID = sessionRowID
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "username", "updated_at"}),
	}).Create(token).Error
}
