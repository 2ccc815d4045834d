package repositories

import (
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetTransactionByID retrieves a transaction with its creator and promotions
func (r *TransactionRepository) GetTransactionByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	result := r.db.
		Preload("User").
		Preload("CreatedBy").
		Preload("ProcessedBy").
		Preload("Promotions").
		First(&tx, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "transaction not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get transaction")
	}

	return &tx, nil
}

// TransactionListFilter narrows transaction listings. UserID scopes the
// query to one balance-affected party (the /users/me listing); zero means
// all users (the manager listing).
type TransactionListFilter struct {
	UserID      uint
	Name        string
	CreatedBy   string
	Suspicious  *bool
	PromotionID *uint
	Type        string
	RelatedID   *uint
	Amount      *int
	Operator    string // "gte" or "lte"
	Page        int
	Limit       int
}

// ListTransactions returns a page of transactions plus the unpaged count.
func (r *TransactionRepository) ListTransactions(filter TransactionListFilter) ([]models.Transaction, int64, error) {
	query := r.db.Model(&models.Transaction{})

	if filter.UserID != 0 {
		query = query.Where("transactions.user_id = ?", filter.UserID)
	}
	if filter.Name != "" {
		pattern := "%" + filter.Name + "%"
		query = query.
			Joins("JOIN users ON users.id = transactions.user_id").
			Where("users.utorid LIKE ? OR users.name LIKE ?", pattern, pattern)
	}
	if filter.CreatedBy != "" {
		query = query.
			Joins("JOIN users AS creators ON creators.id = transactions.created_by_id").
			Where("creators.utorid = ?", filter.CreatedBy)
	}
	if filter.Suspicious != nil {
		query = query.Where("transactions.suspicious = ?", *filter.Suspicious)
	}
	if filter.PromotionID != nil {
		query = query.
			Joins("JOIN transaction_promotions ON transaction_promotions.transaction_id = transactions.id").
			Where("transaction_promotions.promotion_id = ?", *filter.PromotionID)
	}
	if filter.Type != "" {
		query = query.Where("transactions.type = ?", filter.Type)
	}
	if filter.RelatedID != nil {
		query = query.Where("transactions.related_id = ?", *filter.RelatedID)
	}
	if filter.Amount != nil {
		if filter.Operator == "gte" {
			query = query.Where("transactions.amount >= ?", *filter.Amount)
		} else {
			query = query.Where("transactions.amount <= ?", *filter.Amount)
		}
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count transactions")
	}

	var transactions []models.Transaction
	err := query.
		Preload("User").
		Preload("CreatedBy").
		Preload("ProcessedBy").
		Preload("Promotions").
		Order("transactions.id ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list transactions")
	}

	return transactions, count, nil
}
