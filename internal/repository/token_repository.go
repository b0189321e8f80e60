package repository

import (
	"context"
	"errors"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	FindByID(id uuid.UUID) (*domain.Token, error)
	ListByUserID(userID uuid.UUID) ([]domain.Token, error)
	Create(token *domain.Token) error
	SetScopes(token *domain.Token, scopes []domain.TokenScope) error
	DeleteByIDForUser(userID, tokenID uuid.UUID) (bool, error)
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

func (r *GormTokenRepository) FindByID(id uuid.UUID) (*domain.Token, error) {
	var t domain.Token
	err := r.db.Preload("User").Preload("Scopes").Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "find_by_id", "success")
	return &t, nil
}

func (r *GormTokenRepository) ListByUserID(userID uuid.UUID) ([]domain.Token, error) {
	var tokens []domain.Token
	err := r.db.Preload("Scopes").Where("user_id = ?", userID).Order("created_at DESC").Find(&tokens).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user_id", "error")
		return tokens, err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "list_by_user_id", "success")
	return tokens, nil
}

func (r *GormTokenRepository) Create(token *domain.Token) error {
	err := r.db.Create(token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "create", "success")
	return nil
}

func (r *GormTokenRepository) SetScopes(token *domain.Token, scopes []domain.TokenScope) error {
	err := r.db.Model(token).Association("Scopes").Replace(scopes)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "set_scopes", "error")
		return err
	}
	token.Scopes = scopes
	observability.RecordRepositoryOperation(context.Background(), "token", "set_scopes", "success")
	return nil
}

func (r *GormTokenRepository) DeleteByIDForUser(userID, tokenID uuid.UUID) (bool, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&domain.Token{}, tokenID)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id_for_user", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id_for_user", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "token", "delete_by_id_for_user", "success")
	return true, nil
}
