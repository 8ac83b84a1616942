package cloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"ecocycle/internal/domain"
)

// Firestore collections read by the web client
const (
	UsersCollection     = "users"
	DumpSitesCollection = "dump_sites"
)

// FirestoreMirror writes wallet balances and dump sites to Firestore.
type FirestoreMirror struct {
	client *firestore.Client
}

// NewFirestoreMirror initialises the Firebase app for projectID.
// credentialsFile may be empty to use application default credentials.
func NewFirestoreMirror(ctx context.Context, projectID, credentialsFile string) (*FirestoreMirror, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreMirror{client: client}, nil
}

// SyncWallet merges the balance into users/<id>.
func (m *FirestoreMirror) SyncWallet(ctx context.Context, userID uint, balance decimal.Decimal) error {
	doc := m.client.Collection(UsersCollection).Doc(strconv.FormatUint(uint64(userID), 10))
	_, err := doc.Set(ctx, WalletDocument(balance), firestore.MergeAll)
	return err
}

// PublishDump writes dump_sites/<id>.
func (m *FirestoreMirror) PublishDump(ctx context.Context, r domain.DumpReport) error {
	doc := m.client.Collection(DumpSitesCollection).Doc(strconv.FormatUint(uint64(r.ID), 10))
	_, err := doc.Set(ctx, DumpDocument(r))
	return err
}

// Close releases the client.
func (m *FirestoreMirror) Close() error {
	return m.client.Close()
}

// WalletDocument is the merge payload for a user document.
func WalletDocument(balance decimal.Decimal) map[string]interface{} {
	return map[string]interface{}{
		"wallet":    balance.InexactFloat64(),
		"updatedAt": firestore.ServerTimestamp,
	}
}

// DumpDocument is the dump_sites document the map listens to.
func DumpDocument(r domain.DumpReport) map[string]interface{} {
	doc := map[string]interface{}{
		"location":    r.Location,
		"description": r.Description,
		"wasteType":   r.WasteType,
		"user":        r.Reporter,
		"status":      r.Status,
		"timestamp":   time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.Lat != nil && r.Lng != nil {
		doc["lat"] = *r.Lat
		doc["lng"] = *r.Lng
	}
	return doc
}
