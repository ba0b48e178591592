package models

import "time"

const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPaid    = "PAID"
	PaymentStatusExpired = "EXPIRED"
	PaymentStatusFailed  = "FAILED"
)

// PaymentTransaction is one row per payment attempt, correlated with the
// provider through the unique merchant reference. Status transitions out of
// UNPAID are terminal and one-way.
type PaymentTransaction struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	MerchantRef string     `gorm:"uniqueIndex;type:varchar(64);not null" json:"merchant_ref"`
	Email       string     `gorm:"type:varchar(200);index" json:"email"`
	Message     string     `gorm:"type:text" json:"message"`
	Attachment  string     `gorm:"type:varchar(255)" json:"attachment"`
	Amount      int64      `gorm:"not null" json:"amount"`
	Status      string     `gorm:"type:varchar(20);default:'UNPAID';index" json:"status"`
	CheckoutURL string     `gorm:"type:varchar(255)" json:"checkout_url"`
	PaidAt      *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final status.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status != PaymentStatusUnpaid
}

// Age returns how long ago the transaction was created.
func (t *PaymentTransaction) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}
