package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository defines decoupled operations for session persistence.
type TokenRepository interface {
	Get(ctx context.Context) (*Token, error)
	Upsert(ctx context.Context, token *Token) error
	Clear(ctx context.Context) error
}

// TeamRepository caches what the API last returned for teams and members.
// Mutating commands invalidate the entries they make stale.
type TeamRepository interface {
	ReplaceTeams(ctx context.Context, teams []TeamRecord) error
	ListTeams(ctx context.Context) ([]TeamRecord, error)
	GetTeam(ctx context.Context, id string) (*TeamRecord, error)
	PutTeam(ctx context.Context, team TeamRecord) error
	ReplaceMembers(ctx context.Context, teamID string, members []MemberRecord) error
	ListMembers(ctx context.Context, teamID string) ([]MemberRecord, error)
	InvalidateTeams(ctx context.Context) error
	InvalidateTeam(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// gormTokenRepo is a GORM-backed implementation of TokenRepository.
type gormTokenRepo struct{ db *gorm.DB }

// gormTeamRepo is a GORM-backed implementation of TeamRepository.
type gormTeamRepo struct{ db *gorm.DB }

// NewTokenRepository creates a TokenRepository. Accepts *gorm.DB to avoid global access.
func NewTokenRepository(db *gorm.DB) TokenRepository { return &gormTokenRepo{db: db} }

// NewTeamRepository creates a TeamRepository. Accepts *gorm.DB to avoid global access.
func NewTeamRepository(db *gorm.DB) TeamRepository { return &gormTeamRepo{db: db} }

var errRepoNotInitialized = errors.New("repository not initialized")

func (r *gormTokenRepo) Get(ctx context.Context) (*Token, error) {
	if r.db == nil {
		return nil, errRepoNotInitialized
	}
	var token Token
	err := r.db.WithContext(ctx).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepo) Upsert(ctx context.Context, token *Token) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return upsertToken(r.db.WithContext(ctx), token)
}

func (r *gormTokenRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Token{}).Error
}

func (r *gormTeamRepo) ReplaceTeams(ctx context.Context, teams []TeamRecord) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TeamRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear cached teams: %w", err)
		}
		if len(teams) == 0 {
			return nil
		}
		for i := range teams {
			teams[i].CachedAt = now
		}
		return tx.Create(&teams).Error
	})
}

func (r *gormTeamRepo) ListTeams(ctx context.Context) ([]TeamRecord, error) {
	if r.db == nil {
		return nil, errRepoNotInitialized
	}
	var teams []TeamRecord
	if err := r.db.WithContext(ctx).Order("name").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *gormTeamRepo) GetTeam(ctx context.Context, id string) (*TeamRecord, error) {
	if r.db == nil {
		return nil, errRepoNotInitialized
	}
	var team TeamRecord
	err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *gormTeamRepo) PutTeam(ctx context.Context, team TeamRecord) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	team.CachedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&team).Error
}

func (r *gormTeamRepo) ReplaceMembers(ctx context.Context, teamID string, members []MemberRecord) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&MemberRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear cached members: %w", err)
		}
		if len(members) == 0 {
			return nil
		}
		for i := range members {
			members[i].TeamID = teamID
		}
		return tx.Create(&members).Error
	})
}

func (r *gormTeamRepo) ListMembers(ctx context.Context, teamID string) ([]MemberRecord, error) {
	if r.db == nil {
		return nil, errRepoNotInitialized
	}
	var members []MemberRecord
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("username").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *gormTeamRepo) InvalidateTeams(ctx context.Context) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TeamRecord{}).Error
}

func (r *gormTeamRepo) InvalidateTeam(ctx context.Context, id string) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&MemberRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&TeamRecord{}).Error
	})
}

// Clear drops every cached team and membership, as on logout.
func (r *gormTeamRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return errRepoNotInitialized
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&MemberRecord{}).Error; err != nil {
			return err
		}
		return global.Delete(&TeamRecord{}).Error
	})
}
