// Package rewards turns classified scans into wallet credits and confirms
// scanned items delivered to drop-off centers.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ecocycle/internal/classifier"
	"ecocycle/internal/cloud"
	"ecocycle/internal/domain"
	"ecocycle/internal/ledger"
	"ecocycle/internal/realtime"
	"ecocycle/internal/utils"
)

// MaxWeightKg is the heaviest single item a scan may declare.
var MaxWeightKg = decimal.NewFromInt(100)

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrInvalidWeight = errors.New("weight must be greater than 0 and at most 100 kg")
)

// Classifier is the part of classifier.Client the service needs.
type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) (*classifier.Result, error)
}

// Deps wires a Service. Images, Mirror and Events are optional.
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Classifier Classifier
	Images     cloud.ImageStore
	Mirror     cloud.Mirror
	Events     realtime.Publisher
}

// Service runs the scan-and-earn flow.
type Service struct {
	db         *gorm.DB
	rdb        *redis.Client
	classifier Classifier
	images     cloud.ImageStore
	mirror     cloud.Mirror
	events     realtime.Publisher
}

// NewService builds a Service.
func NewService(d Deps) *Service {
	if d.Mirror == nil {
		d.Mirror = cloud.NopMirror{}
	}
	return &Service{
		db:         d.DB,
		rdb:        d.Redis,
		classifier: d.Classifier,
		images:     d.Images,
		mirror:     d.Mirror,
		events:     d.Events,
	}
}

// ScanInput is one photo submitted for a reward.
type ScanInput struct {
	Image          []byte
	ContentType    string
	WeightKg       decimal.Decimal // zero means 1 kg
	IdempotencyKey string
}

// ScanOutcome is the stored scan and the balance after it.
type ScanOutcome struct {
	Scan     domain.Scan
	Result   *classifier.Result // nil on replay
	Balance  decimal.Decimal
	Replayed bool
}

// Scan classifies the photo, stores the scan and credits the reward in one
// transaction. A repeated idempotency key returns the first scan unchanged.
func (s *Service) Scan(ctx context.Context, userID uint, in ScanInput) (*ScanOutcome, error) {
	if len(in.Image) == 0 {
		return nil, ErrEmptyImage
	}
	weight := in.WeightKg
	if weight.IsZero() {
		weight = decimal.NewFromInt(1)
	}
	if !weight.IsPositive() || weight.GreaterThan(MaxWeightKg) {
		return nil, ErrInvalidWeight
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	if key != "" {
		if prev, err := s.findByKey(userID, key); err != nil {
			return nil, err
		} else if prev != nil {
			return s.replay(*prev)
		}
	}

	res, err := s.classifier.Classify(ctx, in.Image, in.ContentType)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("Scan classification failed")
		return nil, err
	}

	scan := domain.Scan{
		ID:         uuid.NewString(),
		UserID:     userID,
		Category:   res.Category,
		Class:      res.Class,
		Confidence: res.Confidence,
		Recyclable: res.Recyclable,
		PricePerKg: res.PricePerKg,
		WeightKg:   weight,
		Reward:     res.PricePerKg.Mul(weight).Round(2),
		Reasoning:  utils.Truncate(res.Debug.Reasoning, 512),
		Model:      res.Debug.Model,
		Status:     domain.ScanCredited,
	}
	if key != "" {
		scan.IdempotencyKey = &key
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&scan).Error; err != nil {
			return err
		}
		if !scan.Reward.IsPositive() {
			return nil
		}
		w, err := ledger.EnsureWallet(tx, userID)
		if err != nil {
			return err
		}
		_, err = ledger.Credit(tx, w.ID, scan.Reward, domain.TxReward, RewardReference(scan.ID))
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && key != "" {
		// a concurrent request with the same key won the insert
		prev, ferr := s.findByKey(userID, key)
		if ferr == nil && prev != nil {
			return s.replay(*prev)
		}
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "scan_id": scan.ID, "error": err.Error()}).Error("Scan credit failed")
		return nil, fmt.Errorf("store scan: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"scan_id":  scan.ID,
		"category": scan.Category,
		"weight":   scan.WeightKg.String(),
		"reward":   scan.Reward.String(),
		"type":     domain.TxReward,
	}).Info("Scan credited")

	s.archive(ctx, &scan, in)
	balance, err := s.SyncBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ScanOutcome{Scan: scan, Result: res, Balance: balance}, nil
}

// ListScans returns one page of a user's scans, newest first.
func (s *Service) ListScans(userID uint, page, pageSize int) ([]domain.Scan, int64, error) {
	q := s.db.Model(&domain.Scan{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	scans := []domain.Scan{}
	if err := q.Order("created_at desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&scans).Error; err != nil {
		return nil, 0, err
	}
	return scans, total, nil
}

// SyncBalance drops the cached wallet, reads the current balance and pushes
// it to websocket subscribers and the Firestore mirror. Only the read can fail.
func (s *Service) SyncBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	if s.rdb != nil {
		if err := utils.InvalidateWallet(ctx, s.rdb, userID); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Wallet cache invalidation failed")
		}
	}
	w, err := ledger.WalletByUser(s.db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if s.events != nil {
		s.events.Publish(realtime.WalletTopic(userID), realtime.Event{
			Type: realtime.EventWalletUpdated,
			Data: WalletUpdate{Balance: w.Balance, Currency: w.Currency},
		})
	}
	if err := s.mirror.SyncWallet(ctx, userID, w.Balance); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Wallet mirror failed")
	}
	return w.Balance, nil
}

// WalletUpdate is the payload of a wallet.updated event.
type WalletUpdate struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// RewardReference is the ledger reference of a scan's credit.
func RewardReference(scanID string) string {
	return "scan:" + scanID
}

func (s *Service) findByKey(userID uint, key string) (*domain.Scan, error) {
	var scan domain.Scan
	err := s.db.Where("user_id = ? AND idempotency_key = ?", userID, key).First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *Service) replay(scan domain.Scan) (*ScanOutcome, error) {
	w, err := ledger.WalletByUser(s.db, scan.UserID)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": scan.UserID, "scan_id": scan.ID}).Info("Scan replayed")
	return &ScanOutcome{Scan: scan, Balance: w.Balance, Replayed: true}, nil
}

// archive uploads the photo and records where it went. Failures only log.
func (s *Service) archive(ctx context.Context, scan *domain.Scan, in ScanInput) {
	if s.images == nil {
		return
	}
	key := fmt.Sprintf("scans/%d/%s%s", scan.UserID, scan.ID, extension(in.ContentType))
	ref, err := s.images.Put(ctx, key, in.ContentType, in.Image)
	if err != nil {
		logrus.WithFields(logrus.Fields{"scan_id": scan.ID, "error": err.Error()}).Warn("Scan image upload failed")
		return
	}
	if err := s.db.Model(&domain.Scan{}).Where("id = ?", scan.ID).Update("image_ref", ref).Error; err != nil {
		logrus.WithFields(logrus.Fields{"scan_id": scan.ID, "error": err.Error()}).Warn("Scan image ref not saved")
		return
	}
	scan.ImageRef = ref
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
