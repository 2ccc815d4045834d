package models

import (
	"time"
)

// Transaction type constants
const (
	TxTypePurchase   = "purchase"
	TxTypeRedemption = "redemption"
	TxTypeTransfer   = "transfer"
	TxTypeAdjustment = "adjustment"
	TxTypeEvent      = "event"
)

func ValidTxType(t string) bool {
	switch t {
	case TxTypePurchase, TxTypeRedemption, TxTypeTransfer, TxTypeAdjustment, TxTypeEvent:
		return true
	}
	return false
}

// Transaction is an append-mostly ledger row. Amount and Type never change
// after creation; only Suspicious, Processed and ProcessedByID may, and each
// such change applies a compensating balance mutation.
type Transaction struct {
	ID            uint     `gorm:"primaryKey"`
	Type          string   `gorm:"type:varchar(20);not null;index"`
	UserID        uint     `gorm:"not null;index"`
	User          User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedByID   uint     `gorm:"not null;index"`
	CreatedBy     User     `gorm:"foreignKey:CreatedByID"`
	Amount        int      `gorm:"not null"`
	Spent         *float64 `gorm:"type:decimal(10,2)"`
	RelatedID     *uint    `gorm:"index"`
	Remark        string   `gorm:"type:text"`
	Suspicious    bool     `gorm:"default:false;not null"`
	Processed     bool     `gorm:"default:false;not null"`
	ProcessedByID *uint
	ProcessedBy   *User                  `gorm:"foreignKey:ProcessedByID"`
	Promotions    []TransactionPromotion `gorm:"foreignKey:TransactionID"`
	CreatedAt     time.Time              `gorm:"autoCreateTime;index"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// PromotionIDs collects the applied promotion references.
func (t *Transaction) PromotionIDs() []uint {
	ids := make([]uint, 0, len(t.Promotions))
	for _, tp := range t.Promotions {
		ids = append(ids, tp.PromotionID)
	}
	return ids
}

// Redeemed returns the redemption value of a redemption transaction.
func (t *Transaction) Redeemed() int {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

type TransactionPromotion struct {
	TransactionID uint      `gorm:"primaryKey;autoIncrement:false"`
	PromotionID   uint      `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (TransactionPromotion) TableName() string {
	return "transaction_promotions"
}
