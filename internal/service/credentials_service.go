package service

import (
	"errors"
	"strings"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrCredentialsNotFound = errors.New("wallabag credentials not found")
	ErrInvalidServerURL    = errors.New("server url must start with http:// or https://")
)

// CredentialsService manages a user's wallabag connection settings.
type CredentialsService struct {
	creds repository.WallabagCredentialsRepository
}

func NewCredentialsService(creds repository.WallabagCredentialsRepository) *CredentialsService {
	return &CredentialsService{creds: creds}
}

func (s *CredentialsService) Get(userID uuid.UUID) (*domain.WallabagCredentials, error) {
	creds, err := s.creds.FindByUserID(userID)
	if errors.Is(err, repository.ErrCredentialsNotFound) {
		return nil, ErrCredentialsNotFound
	}
	return creds, err
}

// Save upserts the user's credentials. Any existing session is dropped since
// it was obtained with the previous settings.
func (s *CredentialsService) Save(userID uuid.UUID, serverURL, clientID, clientSecret, username, password string) (*domain.WallabagCredentials, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, ErrInvalidServerURL
	}

	creds, err := s.creds.FindByUserID(userID)
	if err != nil {
		if !errors.Is(err, repository.ErrCredentialsNotFound) {
			return nil, err
		}
		creds = &domain.WallabagCredentials{UserID: userID}
	} else if creds.SessionID != nil {
		if _, err := s.creds.DeleteByUserID(userID); err != nil {
			return nil, err
		}
		creds = &domain.WallabagCredentials{UserID: userID}
	}

	creds.ServerURL = serverURL
	creds.ClientID = clientID
	creds.ClientSecret = clientSecret
	creds.Username = username
	creds.Password = password
	if err := s.creds.Save(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *CredentialsService) Delete(userID uuid.UUID) error {
	deleted, err := s.creds.DeleteByUserID(userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrCredentialsNotFound
	}
	return nil
}
