package repository

import (
	"context"
	"errors"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrScopeNotFound = errors.New("scope not found")

type ScopeRepository interface {
	Ensure(name, description string) (created bool, err error)
	FindByName(name string) (*domain.TokenScope, error)
	FindByNames(names []string) ([]domain.TokenScope, error)
}

type GormScopeRepository struct{ db *gorm.DB }

func NewScopeRepository(db *gorm.DB) ScopeRepository { return &GormScopeRepository{db: db} }

// Ensure creates the scope if it does not exist yet. Concurrent first
// creations are resolved by the database: the losing insert is a no-op and
// the winner's row stands, so callers never observe a uniqueness violation.
func (r *GormScopeRepository) Ensure(name, description string) (bool, error) {
	scope := domain.TokenScope{Name: name, Description: description}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&scope)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "scope", "ensure", "error")
		return false, res.Error
	}
	created := res.RowsAffected > 0
	observability.RecordRepositoryOperation(context.Background(), "scope", "ensure", "success")
	return created, nil
}

func (r *GormScopeRepository) FindByName(name string) (*domain.TokenScope, error) {
	var s domain.TokenScope
	err := r.db.Where("name = ?", name).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "scope", "find_by_name", "not_found")
			return nil, ErrScopeNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "scope", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "scope", "find_by_name", "success")
	return &s, nil
}

func (r *GormScopeRepository) FindByNames(names []string) ([]domain.TokenScope, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var scopes []domain.TokenScope
	err := r.db.Where("name IN ?", names).Find(&scopes).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "scope", "find_by_names", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "scope", "find_by_names", "success")
	return scopes, nil
}
