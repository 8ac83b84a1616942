// Package cloud connects the service to Google Cloud: a Firestore mirror
// for the legacy front-end that still listens to documents, and a GCS
// bucket that archives scan photos.
package cloud

import (
	"context"

	"github.com/shopspring/decimal"

	"ecocycle/internal/domain"
)

// Mirror copies server state into documents the web client subscribes to.
type Mirror interface {
	SyncWallet(ctx context.Context, userID uint, balance decimal.Decimal) error
	PublishDump(ctx context.Context, report domain.DumpReport) error
}

// ImageStore archives scan photos and returns a reference to them.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// NopMirror is used when Firebase is not configured.
type NopMirror struct{}

func (NopMirror) SyncWallet(context.Context, uint, decimal.Decimal) error { return nil }
func (NopMirror) PublishDump(context.Context, domain.DumpReport) error    { return nil }
