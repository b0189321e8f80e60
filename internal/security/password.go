package security

import (
	"github.com/casimir/freon/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

func SetPassword(u *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

func CheckPassword(u *domain.User, password string) bool {
	return bcrypt.CompareHashAndPassword(u.Password, []byte(password)) == nil
}
