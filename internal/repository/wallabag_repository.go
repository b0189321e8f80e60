package repository

import (
	"context"
	"errors"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCredentialsNotFound = errors.New("wallabag credentials not found")

type WallabagCredentialsRepository interface {
	FindByUserID(userID uuid.UUID) (*domain.WallabagCredentials, error)
	Save(creds *domain.WallabagCredentials) error
	DeleteByUserID(userID uuid.UUID) (bool, error)
	ReplaceSession(creds *domain.WallabagCredentials, session *domain.WallabagSession) error
}

type GormWallabagCredentialsRepository struct{ db *gorm.DB }

func NewWallabagCredentialsRepository(db *gorm.DB) WallabagCredentialsRepository {
	return &GormWallabagCredentialsRepository{db: db}
}

func (r *GormWallabagCredentialsRepository) FindByUserID(userID uuid.UUID) (*domain.WallabagCredentials, error) {
	var c domain.WallabagCredentials
	err := r.db.Preload("Session").Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "find_by_user_id", "not_found")
			return nil, ErrCredentialsNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "find_by_user_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "find_by_user_id", "success")
	return &c, nil
}

func (r *GormWallabagCredentialsRepository) Save(creds *domain.WallabagCredentials) error {
	err := r.db.Save(creds).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "save", "success")
	return nil
}

func (r *GormWallabagCredentialsRepository) DeleteByUserID(userID uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var c domain.WallabagCredentials
		err := tx.Where("user_id = ?", userID).First(&c).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&domain.WallabagCredentials{}, c.ID).Error; err != nil {
			return err
		}
		if c.SessionID != nil {
			if err := tx.Delete(&domain.WallabagSession{}, *c.SessionID).Error; err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "delete_by_user_id", "error")
		return false, err
	}
	outcome := "success"
	if !deleted {
		outcome = "not_found"
	}
	observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "delete_by_user_id", outcome)
	return deleted, nil
}

// ReplaceSession swaps the credentials' session for a new one in a single
// transaction: the old row is deleted, the new one created, and the
// credentials repointed. A concurrent reader sees either the old session or
// the new one, never an intermediate state.
func (r *GormWallabagCredentialsRepository) ReplaceSession(creds *domain.WallabagCredentials, session *domain.WallabagSession) error {
	oldSessionID := creds.SessionID
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.WallabagCredentials{}).
			Where("id = ?", creds.ID).
			Update("session_id", session.ID).Error; err != nil {
			return err
		}
		if oldSessionID != nil {
			if err := tx.Delete(&domain.WallabagSession{}, *oldSessionID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "replace_session", "error")
		return err
	}
	creds.SessionID = &session.ID
	creds.Session = session
	observability.RecordRepositoryOperation(context.Background(), "wallabag_credentials", "replace_session", "success")
	return nil
}
