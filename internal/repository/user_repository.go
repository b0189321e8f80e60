package repository

import (
	"context"
	"errors"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uuid.UUID) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	List() ([]domain.User, error)
	Create(user *domain.User) error
	UpdatePassword(id uuid.UUID, password []byte) error
	DeleteByID(id uuid.UUID) (bool, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByUsername(username string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_username", "success")
	return &u, nil
}

func (r *GormUserRepository) List() ([]domain.User, error) {
	var users []domain.User
	err := r.db.Order("username ASC").Find(&users).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list", "error")
		return users, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "list", "success")
	return users, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) UpdatePassword(id uuid.UUID, password []byte) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Update("password", password)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "success")
	return nil
}

// DeleteByID removes the user and everything hanging off it: tokens, wallabag
// credentials and their session.
func (r *GormUserRepository) DeleteByID(id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.Token{}).Error; err != nil {
			return err
		}
		var c domain.WallabagCredentials
		err := tx.Where("user_id = ?", id).First(&c).Error
		if err == nil {
			if err := tx.Delete(&domain.WallabagCredentials{}, c.ID).Error; err != nil {
				return err
			}
			if c.SessionID != nil {
				if err := tx.Delete(&domain.WallabagSession{}, *c.SessionID).Error; err != nil {
					return err
				}
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "delete_by_id", "error")
		return false, err
	}
	outcome := "success"
	if !deleted {
		outcome = "not_found"
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "delete_by_id", outcome)
	return deleted, nil
}
