// Package notify tells people about events: moderators about new dump
// reports, users about password resets.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ecocycle/internal/domain"
)

// Notifier alerts moderators.
type Notifier interface {
	DumpReported(ctx context.Context, report domain.DumpReport) error
}

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) DumpReported(context.Context, domain.DumpReport) error { return nil }

// LogMailer writes reset links to the log instead of sending email.
type LogMailer struct {
	// RevealToken includes the token in the log line (development only).
	RevealToken bool
}

// SendPasswordReset logs the reset request.
func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	fields := logrus.Fields{"email": email}
	if m.RevealToken {
		fields["token"] = token
	}
	logrus.WithFields(fields).Info("Password reset requested")
	return nil
}

// FormatDumpMessage renders the moderator alert text.
func FormatDumpMessage(r domain.DumpReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New dump report #%d\n", r.ID)
	fmt.Fprintf(&b, "Location: %s\n", r.Location)
	if r.WasteType != "" {
		fmt.Fprintf(&b, "Waste: %s\n", r.WasteType)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", r.Description)
	}
	if r.Lat != nil && r.Lng != nil {
		fmt.Fprintf(&b, "Map: https://www.openstreetmap.org/?mlat=%.5f&mlon=%.5f\n", *r.Lat, *r.Lng)
	}
	fmt.Fprintf(&b, "Reported by %s at %s", r.Reporter, time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC1123))
	return b.String()
}
