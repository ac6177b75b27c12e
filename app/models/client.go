package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PaymentStatusNone               = "none"
	PaymentStatusPending            = "pending"
	PaymentStatusInstallmentsActive = "installments_active"
	PaymentStatusPaid               = "paid"
)

const (
	ProbateSimplified     = "simplified"
	ProbateFull           = "full"
	ProbateAccountingOnly = "accounting_only"
)

// Client is the per-customer payment state, keyed by lower-cased email.
// Only the webhook leg (reconciler / installment tracker) mutates it.
type Client struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Email                 string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email"`
	Name                  string         `gorm:"type:varchar(150)" json:"name"`
	ProbateType           string         `gorm:"type:varchar(50)" json:"probate_type"`
	PaymentPlan           string         `gorm:"type:varchar(20)" json:"payment_plan"`
	PaymentStatus         string         `gorm:"type:varchar(32);default:'none';index" json:"payment_status"`
	AmountPaidCents       int64          `gorm:"default:0" json:"amount_paid_cents"`
	OrderNumber           string         `gorm:"type:varchar(40)" json:"order_number"`
	InstallmentsRemaining *int           `gorm:"default:null" json:"installments_remaining,omitempty"`
	PaidAt                *time.Time     `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	LastInstallmentAt     *time.Time     `gorm:"type:timestamp;default:null" json:"last_installment_at,omitempty"`
	StripeSessionID       string         `gorm:"type:varchar(191);index" json:"stripe_session_id"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}
