package services

import (
	"fmt"
	"math"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionService is the single writer of transaction rows, user point
// balances and event point pools. Every operation runs as one database
// transaction: all reads of balances and pools happen under row locks inside
// the same atomic unit that writes them.
type TransactionService struct {
	db       *gorm.DB
	earnRate int
}

func NewTransactionService(db *gorm.DB, earnRate int) *TransactionService {
	return &TransactionService{db: db, earnRate: earnRate}
}

// lockForUpdate applies a row-level write lock. SQLite (used by the test
// suite) serializes writers itself and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// checkDuplicatePromotionIDs rejects a promotion list naming the same
// promotion twice. Attaching a duplicate would collide on the link table's
// primary key.
func checkDuplicatePromotionIDs(promotionIDs []uint) error {
	seen := make(map[uint]struct{}, len(promotionIDs))
	for _, pid := range promotionIDs {
		if _, ok := seen[pid]; ok {
			return errors.New(errors.ErrCodeValidation, fmt.Sprintf("promotion %d listed more than once", pid))
		}
		seen[pid] = struct{}{}
	}
	return nil
}

// CreatePurchase records a purchase for the target user. Earned points are
// round(spent * earnRate), zero when the target is flagged suspicious.
// Promotions are validated and recorded against the transaction; one-time
// promotions are consumed for the target. Promotion bonuses are not
// compounded into the earned amount.
func (s *TransactionService) CreatePurchase(actor *models.User, utorid string, spent float64, promotionIDs []uint, remark string) (*models.Transaction, error) {
	if !actor.Role.HasClearance(models.RoleCashier) {
		return nil, errors.New(errors.ErrCodeForbidden, "cashier clearance required")
	}
	if spent <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "spent must be a positive amount")
	}
	if err := checkDuplicatePromotionIDs(promotionIDs); err != nil {
		return nil, err
	}

	var created *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := lockForUpdate(tx).Where("utorid = ?", utorid).First(&target).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
		}

		now := time.Now()
		for _, pid := range promotionIDs {
			var promo models.Promotion
			if err := tx.First(&promo, pid).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("promotion %d not found", pid))
				}
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get promotion")
			}
			if !promo.ActiveAt(now) {
				return errors.New(errors.ErrCodeValidation, fmt.Sprintf("promotion %d is not active", pid))
			}
			if !promo.QualifiesSpending(spent) {
				return errors.New(errors.ErrCodeValidation, fmt.Sprintf("promotion %d minimum spending not met", pid))
			}
			if promo.Type == models.PromotionTypeOneTime {
				var redeemedCount int64
				if err := tx.Model(&models.UserPromotion{}).
					Where("user_id = ? AND promotion_id = ? AND redeemed = ?", target.ID, pid, true).
					Count(&redeemedCount).Error; err != nil {
					return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check promotion redemption")
				}
				if redeemedCount > 0 {
					return errors.New(errors.ErrCodeConflict, fmt.Sprintf("promotion %d already redeemed", pid))
				}
			}
		}

		earned := 0
		if !target.Suspicious {
			earned = int(math.Round(spent * float64(s.earnRate)))
		}

		if earned > 0 {
			if err := tx.Model(&target).Update("points", target.Points+earned).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
			}
		}

		spentValue := spent
		record := &models.Transaction{
			Type:        models.TxTypePurchase,
			UserID:      target.ID,
			CreatedByID: actor.ID,
			Amount:      earned,
			Spent:       &spentValue,
			Remark:      security.SanitizeRemark(remark),
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		for _, pid := range promotionIDs {
			link := &models.TransactionPromotion{TransactionID: record.ID, PromotionID: pid}
			if err := tx.Create(link).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to attach promotion")
			}

			var promo models.Promotion
			if err := tx.First(&promo, pid).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get promotion")
			}
			if promo.Type == models.PromotionTypeOneTime {
				consumed := &models.UserPromotion{UserID: target.ID, PromotionID: pid, Redeemed: true}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "promotion_id"}},
					DoUpdates: clause.Assignments(map[string]interface{}{"redeemed": true}),
				}).Create(consumed).Error; err != nil {
					return errors.Wrap(err, errors.ErrCodeInternalError, "failed to consume promotion")
				}
			}
		}

		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRedemption opens a pending redemption for the acting user. The
// balance is checked against the current balance but not decremented; the
// debit happens when a cashier processes the redemption.
func (s *TransactionService) CreateRedemption(actor *models.User, amount int, remark string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be a positive value")
	}

	var created *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).First(&user, actor.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
		}

		if user.Points < amount {
			return errors.New(errors.ErrCodeInsufficientBalance,
				fmt.Sprintf("insufficient points: have %d, need %d", user.Points, amount))
		}

		record := &models.Transaction{
			Type:        models.TxTypeRedemption,
			UserID:      user.ID,
			CreatedByID: user.ID,
			Amount:      -amount,
			Remark:      security.SanitizeRemark(remark),
			Processed:   false,
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ProcessRedemption settles a pending redemption exactly once, debiting the
// balance by the redeemed value. A second call on the same transaction
// observes processed=true and conflicts.
func (s *TransactionService) ProcessRedemption(actor *models.User, transactionID uint) (*models.Transaction, error) {
	if !actor.Role.HasClearance(models.RoleCashier) {
		return nil, errors.New(errors.ErrCodeForbidden, "cashier clearance required")
	}

	var processed *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.Transaction
		if err := lockForUpdate(tx).First(&record, transactionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "transaction not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get transaction")
		}

		if record.Type != models.TxTypeRedemption {
			return errors.New(errors.ErrCodeConflict, "only redemption transactions can be processed")
		}
		if record.Processed {
			return errors.New(errors.ErrCodeConflict, "transaction already processed")
		}

		redeemed := record.Redeemed()

		var user models.User
		if err := lockForUpdate(tx).First(&user, record.UserID).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
		}
		if user.Points < redeemed {
			return errors.New(errors.ErrCodeInsufficientBalance,
				fmt.Sprintf("insufficient points: have %d, need %d", user.Points, redeemed))
		}

		if err := tx.Model(&user).Update("points", user.Points-redeemed).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
		}

		actorID := actor.ID
		if err := tx.Model(&record).Updates(map[string]interface{}{
			"processed":       true,
			"processed_by_id": actorID,
		}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to mark transaction processed")
		}

		record.Processed = true
		record.ProcessedByID = &actorID
		processed = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// CreateTransfer moves points between two users as one atomic unit and
// records a cross-referenced pair of transaction rows. Returns the sender
// side of the pair.
func (s *TransactionService) CreateTransfer(actor *models.User, recipientID uint, amount int, remark string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be a positive value")
	}
	if recipientID == actor.ID {
		return nil, errors.New(errors.ErrCodeValidation, "cannot transfer points to yourself")
	}

	var created *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock in ascending ID order so concurrent opposite-direction
		// transfers cannot deadlock.
		firstID, secondID := actor.ID, recipientID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}

		users := make(map[uint]*models.User, 2)
		for _, id := range []uint{firstID, secondID} {
			var u models.User
			if err := lockForUpdate(tx).First(&u, id).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					if id == recipientID {
						return errors.New(errors.ErrCodeNotFound, "recipient user not found")
					}
					return errors.New(errors.ErrCodeNotFound, "user not found")
				}
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
			}
			users[id] = &u
		}

		sender := users[actor.ID]
		recipient := users[recipientID]

		if !sender.Verified {
			return errors.New(errors.ErrCodeForbidden, "sender is not verified")
		}
		if sender.Points < amount {
			return errors.New(errors.ErrCodeInsufficientBalance,
				fmt.Sprintf("insufficient points: have %d, need %d", sender.Points, amount))
		}

		if err := tx.Model(sender).Update("points", sender.Points-amount).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to debit sender")
		}
		if err := tx.Model(recipient).Update("points", recipient.Points+amount).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to credit recipient")
		}

		cleanRemark := security.SanitizeRemark(remark)
		recipientRef := recipient.ID
		senderRef := sender.ID

		sent := &models.Transaction{
			Type:        models.TxTypeTransfer,
			UserID:      sender.ID,
			CreatedByID: sender.ID,
			Amount:      -amount,
			RelatedID:   &recipientRef,
			Remark:      cleanRemark,
		}
		if err := tx.Create(sent).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create sender transaction")
		}

		received := &models.Transaction{
			Type:        models.TxTypeTransfer,
			UserID:      recipient.ID,
			CreatedByID: sender.ID,
			Amount:      amount,
			RelatedID:   &senderRef,
			Remark:      cleanRemark,
		}
		if err := tx.Create(received).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create recipient transaction")
		}

		created = sent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateAdjustment applies a signed manager correction against an existing
// transaction. Rejected when it would drive the target balance negative.
func (s *TransactionService) CreateAdjustment(actor *models.User, utorid string, amount int, relatedID uint, promotionIDs []uint, remark string) (*models.Transaction, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	if err := checkDuplicatePromotionIDs(promotionIDs); err != nil {
		return nil, err
	}

	var created *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var related models.Transaction
		if err := tx.First(&related, relatedID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "related transaction not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get related transaction")
		}

		var target models.User
		if err := lockForUpdate(tx).Where("utorid = ?", utorid).First(&target).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
		}

		for _, pid := range promotionIDs {
			var count int64
			if err := tx.Model(&models.Promotion{}).Where("id = ?", pid).Count(&count).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check promotion")
			}
			if count == 0 {
				return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("promotion %d not found", pid))
			}
		}

		newBalance := target.Points + amount
		if newBalance < 0 {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("adjustment would drive balance negative: have %d, delta %d", target.Points, amount))
		}

		if err := tx.Model(&target).Update("points", newBalance).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
		}

		relatedRef := relatedID
		record := &models.Transaction{
			Type:        models.TxTypeAdjustment,
			UserID:      target.ID,
			CreatedByID: actor.ID,
			Amount:      amount,
			RelatedID:   &relatedRef,
			Remark:      security.SanitizeRemark(remark),
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		for _, pid := range promotionIDs {
			link := &models.TransactionPromotion{TransactionID: record.ID, PromotionID: pid}
			if err := tx.Create(link).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to attach promotion")
			}
		}

		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AwardEventPoints awards points from an event's pool. With a utorid it
// awards a single guest; without one it awards every guest the same amount.
// The pool bound is checked against the total needed before any mutation.
func (s *TransactionService) AwardEventPoints(actor *models.User, eventID uint, amount int, utorid string, remark string) ([]models.Transaction, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be a positive value")
	}

	var created []models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := lockForUpdate(tx).First(&event, eventID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "event not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get event")
		}

		if !actor.Role.HasClearance(models.RoleManager) {
			var organizerCount int64
			if err := tx.Model(&models.EventOrganizer{}).
				Where("event_id = ? AND user_id = ?", eventID, actor.ID).
				Count(&organizerCount).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check organizer")
			}
			if organizerCount == 0 {
				return errors.New(errors.ErrCodeForbidden, "organizer or manager clearance required")
			}
		}

		cleanRemark := security.SanitizeRemark(remark)
		eventRef := event.ID

		award := func(userID uint) error {
			var guest models.User
			if err := lockForUpdate(tx).First(&guest, userID).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get guest")
			}
			if err := tx.Model(&guest).Update("points", guest.Points+amount).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to credit guest")
			}
			record := models.Transaction{
				Type:        models.TxTypeEvent,
				UserID:      guest.ID,
				CreatedByID: actor.ID,
				Amount:      amount,
				RelatedID:   &eventRef,
				Remark:      cleanRemark,
			}
			if err := tx.Create(&record).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
			}
			created = append(created, record)
			return nil
		}

		if utorid != "" {
			var target models.User
			if err := tx.Where("utorid = ?", utorid).First(&target).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return errors.New(errors.ErrCodeNotFound, "user not found")
				}
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
			}

			var guestCount int64
			if err := tx.Model(&models.EventGuest{}).
				Where("event_id = ? AND user_id = ?", eventID, target.ID).
				Count(&guestCount).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check guest")
			}
			if guestCount == 0 {
				return errors.New(errors.ErrCodeValidation, "user is not on the guest list")
			}

			if amount > event.PointsRemain {
				return errors.New(errors.ErrCodeConflict,
					fmt.Sprintf("not enough remaining points: have %d, need %d", event.PointsRemain, amount))
			}

			if err := award(target.ID); err != nil {
				return err
			}

			if err := tx.Model(&event).Updates(map[string]interface{}{
				"points_remain":  event.PointsRemain - amount,
				"points_awarded": event.PointsAwarded + amount,
			}).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update event pool")
			}
			return nil
		}

		var guests []models.EventGuest
		if err := tx.Where("event_id = ?", eventID).Order("user_id ASC").Find(&guests).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to list guests")
		}
		if len(guests) == 0 {
			return errors.New(errors.ErrCodeConflict, "no guests to award points to")
		}

		total := amount * len(guests)
		if total > event.PointsRemain {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("not enough remaining points: have %d, need %d", event.PointsRemain, total))
		}

		for _, g := range guests {
			if err := award(g.UserID); err != nil {
				return err
			}
		}

		if err := tx.Model(&event).Updates(map[string]interface{}{
			"points_remain":  event.PointsRemain - total,
			"points_awarded": event.PointsAwarded + total,
		}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update event pool")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetSuspicious toggles the suspicious flag on a transaction, applying the
// inverse of the recorded amount to the affected balance. Flagging claws the
// points back; clearing restores them. A no-change call is an idempotent
// no-op. The recorded amount is reversed exactly; it is never re-derived
// from the current suspicious state of the user.
func (s *TransactionService) SetSuspicious(actor *models.User, transactionID uint, suspicious bool) (*models.Transaction, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}

	var updated *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.Transaction
		if err := lockForUpdate(tx).First(&record, transactionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeNotFound, "transaction not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get transaction")
		}

		if record.Suspicious == suspicious {
			updated = &record
			return nil
		}

		var user models.User
		if err := lockForUpdate(tx).First(&user, record.UserID).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
		}

		delta := -record.Amount
		if !suspicious {
			delta = record.Amount
		}
		if err := tx.Model(&user).Update("points", user.Points+delta).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
		}

		if err := tx.Model(&record).Update("suspicious", suspicious).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update transaction")
		}

		record.Suspicious = suspicious
		updated = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
