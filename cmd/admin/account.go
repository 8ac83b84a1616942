package main

import (
	"errors"  // Error matching
	"fmt"     // Error wrapping
	"strings" // Email normalization

	"ecocycle/internal/domain" // User model
	"ecocycle/internal/ledger" // Wallet creation

	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

var (
	errUserNotFound = errors.New("no account with that email")
	errUserExists   = errors.New("an account with that email already exists")
)

// promote grants the admin role to an existing account
func promote(db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	if err := db.Where("email = ?", normalize(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	if err := db.Model(&user).Update("role", domain.RoleAdmin).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	user.Role = domain.RoleAdmin
	return &user, nil
}

// createAdmin registers a new admin account with an empty wallet
func createAdmin(db *gorm.DB, email, password string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := domain.User{Email: normalize(email), Password: string(hashed), Role: domain.RoleAdmin}
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errUserExists
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		_, err := ledger.EnsureWallet(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail matches the sign-up form rule
func validateEmail(ans interface{}) error {
	s, _ := ans.(string)
	if !strings.Contains(s, "@") || !strings.Contains(s, ".") {
		return errors.New("please enter a valid email")
	}
	return nil
}

// validatePassword enforces the minimum length used at sign-up
func validatePassword(ans interface{}) error {
	s, _ := ans.(string)
	if len(s) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}
