package service

import (
	"errors"
	"fmt"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"
	"github.com/casimir/freon/internal/security"

	"github.com/google/uuid"
)

var (
	ErrBadLogin      = errors.New("bad login")
	ErrUsernameTaken = errors.New("username already taken")
	ErrUserNotFound  = errors.New("user not found")
	ErrLastSuperuser = errors.New("cannot delete the last superuser")
	ErrEmptyPassword = errors.New("password must not be empty")
)

// UserService backs the control surface: login checks and superuser-driven
// account management.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Login verifies the username/password pair. Unknown usernames and wrong
// passwords both come back as ErrBadLogin.
func (s *UserService) Login(username, password string) (*domain.User, error) {
	user, err := s.users.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrBadLogin
		}
		return nil, err
	}
	if !security.CheckPassword(user, password) {
		return nil, ErrBadLogin
	}
	return user, nil
}

func (s *UserService) Create(username, password string, superuser bool) (*domain.User, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	user := &domain.User{Username: username, IsSuperuser: superuser}
	if err := security.SetPassword(user, password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) List() ([]domain.User, error) {
	return s.users.List()
}

func (s *UserService) Get(id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UpdatePassword rehashes and stores a new password for the named user.
func (s *UserService) UpdatePassword(username, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	user, err := s.users.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := security.SetPassword(user, password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(user.ID, user.Password)
}

// Delete removes a user and everything hanging off it. The last superuser is
// protected so the control surface cannot lock itself out.
func (s *UserService) Delete(id uuid.UUID) error {
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsSuperuser {
		all, err := s.users.List()
		if err != nil {
			return err
		}
		supers := 0
		for _, u := range all {
			if u.IsSuperuser {
				supers++
			}
		}
		if supers <= 1 {
			return ErrLastSuperuser
		}
	}
	deleted, err := s.users.DeleteByID(id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}
	return nil
}
