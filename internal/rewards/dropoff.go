package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ecocycle/internal/domain"
	"ecocycle/internal/realtime"
	"ecocycle/internal/utils"
)

var (
	ErrScanNotFound      = errors.New("scan not found")
	ErrCenterNotFound    = errors.New("drop-off center not found")
	ErrNotRecyclable     = errors.New("scan is not recyclable")
	ErrAlreadyDroppedOff = errors.New("scan already dropped off")
)

// DropOff confirms that the item behind a scan reached a center. The reward
// was paid at scan time, so earnings are recorded but not credited again.
func (s *Service) DropOff(ctx context.Context, userID uint, centerID, scanID string) (*domain.DropOff, *domain.Center, error) {
	var (
		drop   domain.DropOff
		center domain.Center
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var scan domain.Scan
		if err := tx.Where("id = ? AND user_id = ?", scanID, userID).First(&scan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScanNotFound
			}
			return err
		}
		if !scan.Recyclable {
			return ErrNotRecyclable
		}
		if err := tx.First(&center, "id = ?", centerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCenterNotFound
			}
			return err
		}

		res := tx.Model(&domain.Scan{}).
			Where("id = ? AND status = ?", scan.ID, domain.ScanCredited).
			Update("status", domain.ScanDroppedOff)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyDroppedOff
		}

		if err := tx.Model(&domain.Center{}).
			Where("id = ?", center.ID).
			Update("load_kg", gorm.Expr("load_kg + ?", scan.WeightKg)).Error; err != nil {
			return err
		}

		drop = domain.DropOff{
			UserID:    userID,
			CenterID:  center.ID,
			ScanID:    scan.ID,
			WasteType: scan.Category,
			WeightKg:  scan.WeightKg,
			Earnings:  scan.Reward,
			Status:    domain.DropOffConfirmed,
		}
		if err := tx.Create(&drop).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyDroppedOff
			}
			return err
		}
		return tx.First(&center, "id = ?", center.ID).Error
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "scan_id": scanID, "center_id": centerID, "error": err.Error()}).Error("Drop-off failed")
		if errors.Is(err, ErrScanNotFound) || errors.Is(err, ErrCenterNotFound) || errors.Is(err, ErrNotRecyclable) || errors.Is(err, ErrAlreadyDroppedOff) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("record drop-off: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"scan_id":   scanID,
		"center_id": center.ID,
		"weight":    drop.WeightKg.String(),
		"earnings":  drop.Earnings.String(),
	}).Info("Drop-off confirmed")

	s.PublishCenter(center)
	return &drop, &center, nil
}

// ListDropOffs returns one page of a user's drop-offs, newest first.
func (s *Service) ListDropOffs(userID uint, page, pageSize int) ([]domain.DropOff, int64, error) {
	q := s.db.Model(&domain.DropOff{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	drops := []domain.DropOff{}
	if err := q.Order("created_at desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&drops).Error; err != nil {
		return nil, 0, err
	}
	return drops, total, nil
}

// EmptyCenter resets a center's load after collection.
func (s *Service) EmptyCenter(centerID string) (*domain.Center, error) {
	var center domain.Center
	if err := s.db.First(&center, "id = ?", centerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCenterNotFound
		}
		return nil, err
	}
	if err := s.db.Model(&center).Update("load_kg", decimal.Zero).Error; err != nil {
		return nil, err
	}
	center.LoadKg = decimal.Zero
	logrus.WithField("center_id", centerID).Info("Center emptied")
	s.PublishCenter(center)
	return &center, nil
}

// Centers lists every center with its fullness.
func (s *Service) Centers() ([]domain.CenterView, error) {
	var centers []domain.Center
	if err := s.db.Order("name").Find(&centers).Error; err != nil {
		return nil, err
	}
	views := make([]domain.CenterView, len(centers))
	for i, c := range centers {
		views[i] = c.View()
	}
	return views, nil
}

// PublishCenter pushes a center's new state to map subscribers.
func (s *Service) PublishCenter(center domain.Center) {
	if s.events == nil {
		return
	}
	s.events.Publish(realtime.TopicMap, realtime.Event{Type: realtime.EventCenterUpdated, Data: center.View()})
}
