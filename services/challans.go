package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trafficlens/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dueGracePeriod is the fixed payment window stamped on every challan
const dueGracePeriod = 30 * 24 * time.Hour

// IssueRequest carries the issuer-supplied inputs for a new challan
type IssueRequest struct {
	ViolationID   string  `json:"violationId"`
	OwnerName     string  `json:"ownerName"`
	OwnerAddress  *string `json:"ownerAddress,omitempty"`
	PenaltyAmount *int    `json:"penaltyAmount,omitempty"` // overrides the penalty table
}

// ChallanFilter narrows challan listings
type ChallanFilter struct {
	Status models.ChallanStatus
	Limit  int
	Skip   int
}

// challanTransitions lists the states a challan may be moved to and from
// which states the move is legal
var challanTransitions = map[models.ChallanStatus][]models.ChallanStatus{
	models.ChallanSent:      {models.ChallanIssued},
	models.ChallanPaid:      {models.ChallanSent},
	models.ChallanCancelled: {models.ChallanIssued, models.ChallanSent},
}

// ChallanService converts verified violations into penalty notices and
// tracks their payment lifecycle
type ChallanService struct {
	db  *gorm.DB
	pub Publisher
	now func() time.Time
}

// NewChallanService creates a new challan service
func NewChallanService(db *gorm.DB, pub Publisher) *ChallanService {
	return &ChallanService{db: db, pub: pub, now: time.Now}
}

// Issue creates a challan for a verified violation. The whole operation
// runs in one transaction; the per-date sequence row is written first so
// concurrent issuers serialize on it, and the partial unique index on
// challans(violation_id) backstops the one-active-challan invariant.
func (s *ChallanService) Issue(ctx context.Context, req IssueRequest) (*models.Challan, error) {
	if req.ViolationID == "" {
		return nil, fmt.Errorf("%w: violationId is required", ErrValidation)
	}
	if req.OwnerName == "" {
		return nil, fmt.Errorf("%w: ownerName is required", ErrValidation)
	}
	if req.PenaltyAmount != nil && *req.PenaltyAmount <= 0 {
		return nil, fmt.Errorf("%w: penaltyAmount override must be positive", ErrValidation)
	}

	// Fast-path checks before taking any lock
	violation, err := s.violationForIssue(ctx, req.ViolationID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNoActiveChallan(ctx, s.db, req.ViolationID); err != nil {
		return nil, err
	}

	penalty, err := s.penaltyFor(violation.ViolationType, req.PenaltyAmount)
	if err != nil {
		return nil, err
	}

	issueDate := s.now()
	dateKey := issueDate.Format("20060102")

	var challan *models.Challan
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Bump the per-date counter first. This write locks the sequence
		// row for the rest of the transaction, so issuance on a given date
		// is serialized and the re-checks below run under that lock.
		seq := models.ChallanSequence{Date: dateKey, NextSeq: 1}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"next_seq": gorm.Expr("next_seq + 1")}),
		}).Create(&seq).Error; err != nil {
			return storeErr(err)
		}
		if err := tx.First(&seq, "date = ?", dateKey).Error; err != nil {
			return storeErr(err)
		}

		// Re-check under the lock: the violation must still be verified
		// and still without an active challan.
		var current models.Violation
		if err := tx.First(&current, "id = ?", req.ViolationID).Error; err != nil {
			return storeErr(err)
		}
		if current.Status != models.ViolationVerified {
			return &TransitionError{
				Record:    "violation",
				ID:        req.ViolationID,
				Current:   string(current.Status),
				Attempted: "issued",
			}
		}
		if err := s.checkNoActiveChallan(ctx, tx, req.ViolationID); err != nil {
			return err
		}

		vehicleNumber := ""
		if current.PlateNumber != nil {
			vehicleNumber = *current.PlateNumber
		}

		challan = &models.Challan{
			ID:            uuid.New().String(),
			ChallanNumber: fmt.Sprintf("CH%s%02d", dateKey, seq.NextSeq),
			ViolationID:   current.ID,
			VehicleNumber: vehicleNumber,
			OwnerName:     req.OwnerName,
			OwnerAddress:  req.OwnerAddress,
			ViolationType: current.ViolationType,
			PenaltyAmount: penalty,
			IssueDate:     issueDate,
			DueDate:       issueDate.Add(dueGracePeriod),
			Status:        models.ChallanIssued,
		}

		if err := tx.Create(challan).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: violation %s already has an active challan", ErrConflict, req.ViolationID)
			}
			return storeErr(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Printf("🧾 [CHALLAN] Issued %s for violation %s (₹%d)", challan.ChallanNumber, challan.ViolationID, challan.PenaltyAmount)
	s.publishChallan("challan.issued", challan)
	return challan, nil
}

func (s *ChallanService) violationForIssue(ctx context.Context, violationID string) (*models.Violation, error) {
	var violation models.Violation
	if err := s.db.WithContext(ctx).First(&violation, "id = ?", violationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: violation %s", ErrNotFound, violationID)
		}
		return nil, storeErr(err)
	}
	if violation.Status != models.ViolationVerified {
		return nil, &TransitionError{
			Record:    "violation",
			ID:        violationID,
			Current:   string(violation.Status),
			Attempted: "issued",
		}
	}
	return &violation, nil
}

func (s *ChallanService) checkNoActiveChallan(ctx context.Context, db *gorm.DB, violationID string) error {
	var count int64
	err := db.WithContext(ctx).Model(&models.Challan{}).
		Where("violation_id = ? AND status <> ?", violationID, models.ChallanCancelled).
		Count(&count).Error
	if err != nil {
		return storeErr(err)
	}
	if count > 0 {
		return fmt.Errorf("%w: violation %s already has an active challan", ErrConflict, violationID)
	}
	return nil
}

func (s *ChallanService) penaltyFor(t models.ViolationType, override *int) (int, error) {
	if override != nil {
		return *override, nil
	}
	penalty, ok := models.PenaltyTable[t]
	if !ok {
		return 0, fmt.Errorf("%w: no penalty on record for %s and no override given", ErrValidation, t)
	}
	return penalty, nil
}

// SetStatus moves a challan along issued → sent → paid, or cancels it from
// issued/sent. The UPDATE is guarded on the legal source states so exactly
// one of two racing callers succeeds. Cancellation keeps the record for
// audit and frees the violation for a fresh challan.
func (s *ChallanService) SetStatus(ctx context.Context, id string, status models.ChallanStatus, cancelReason *string) (*models.Challan, error) {
	allowedFrom, ok := challanTransitions[status]
	if !ok {
		return nil, fmt.Errorf("%w: cannot set challan status to %q", ErrValidation, status)
	}

	updates := map[string]interface{}{"status": status}
	if status == models.ChallanCancelled {
		updates["cancelled_at"] = s.now()
		if cancelReason != nil {
			updates["cancel_reason"] = *cancelReason
		}
	}

	res := s.db.WithContext(ctx).Model(&models.Challan{}).
		Where("id = ? AND status IN ?", id, allowedFrom).
		Updates(updates)
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}

	if res.RowsAffected == 0 {
		challan, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{
			Record:    "challan",
			ID:        id,
			Current:   string(challan.Status),
			Attempted: string(status),
		}
	}

	challan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Printf("🧾 [CHALLAN] %s moved to %s", challan.ChallanNumber, status)
	s.publishChallan("challan."+string(status), challan)
	return challan, nil
}

// Get fetches a single challan by id
func (s *ChallanService) Get(ctx context.Context, id string) (*models.Challan, error) {
	var challan models.Challan
	if err := s.db.WithContext(ctx).First(&challan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challan %s", ErrNotFound, id)
		}
		return nil, storeErr(err)
	}
	return &challan, nil
}

// List returns a page of challans, newest first, plus the total match count
func (s *ChallanService) List(ctx context.Context, filter ChallanFilter) ([]models.Challan, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Challan{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var challans []models.Challan
	if err := query.Order("issue_date DESC").Limit(limit).Offset(filter.Skip).Find(&challans).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	return challans, total, nil
}

func (s *ChallanService) publishChallan(event string, payload *models.Challan) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(SubjectChallans, body); err != nil {
		log.Printf("⚠️ Failed to publish %s event: %v", event, err)
	}
}
