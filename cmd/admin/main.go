// Command admin grants moderator access from a terminal.
package main

import (
	"ecocycle/internal/config" // Custom import path (Config)
	"ecocycle/internal/db"     // Custom import path (Database)
	"ecocycle/internal/domain" // User model

	"github.com/AlecAivazis/survey/v2" // Interactive prompts
	"github.com/sirupsen/logrus"       // Logrus for structured logging
)

const (
	actionPromote = "Promote existing user"
	actionCreate  = "Create admin account"
)

func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}

	var action string
	if err := survey.AskOne(&survey.Select{
		Message: "What do you want to do?",
		Options: []string{actionPromote, actionCreate},
		Default: actionPromote,
	}, &action); err != nil {
		logrus.Fatalf("prompt aborted: %v", err)
	}

	var email string
	if err := survey.AskOne(&survey.Input{Message: "Email:"}, &email, survey.WithValidator(validateEmail)); err != nil {
		logrus.Fatalf("prompt aborted: %v", err)
	}

	var user *domain.User
	switch action {
	case actionCreate:
		var password string
		if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(validatePassword)); err != nil {
			logrus.Fatalf("prompt aborted: %v", err)
		}
		user, err = createAdmin(gdb, email, password)
	default:
		user, err = promote(gdb, email)
	}
	if err != nil {
		logrus.WithField("email", email).Fatalf("%s failed: %v", action, err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Admin access granted")
}
