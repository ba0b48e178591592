package payment

import (
	"time"

	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

// Repository provides DB operations used by payment reconciliation.
type Repository interface {
	CreateTransaction(tx *models.PaymentTransaction) error
	GetByMerchantRef(merchantRef string) (*models.PaymentTransaction, error)
	TransitionFromUnpaid(merchantRef, status string, paidAt *time.Time) (bool, error)
	CreatePaidPost(post *models.PaidPost) error
	StaleUnpaid(olderThan time.Time) ([]models.PaymentTransaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateTransaction(tx *models.PaymentTransaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) GetByMerchantRef(merchantRef string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := r.db.Where("merchant_ref = ?", merchantRef).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// TransitionFromUnpaid applies a terminal status only when the row is still
// UNPAID, making the one-way state machine a single conditional update.
func (r *gormRepository) TransitionFromUnpaid(merchantRef, status string, paidAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	tx := r.db.Model(&models.PaymentTransaction{}).
		Where("merchant_ref = ? AND status = ?", merchantRef, models.PaymentStatusUnpaid).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreatePaidPost(post *models.PaidPost) error {
	return r.db.Create(post).Error
}

func (r *gormRepository) StaleUnpaid(olderThan time.Time) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.Where("status = ? AND created_at < ?", models.PaymentStatusUnpaid, olderThan).
		Find(&txs).Error
	return txs, err
}
