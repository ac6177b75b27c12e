package models

import "time"

const PaymentRecordCompleted = "completed"

// Payment is a standalone record created when a confirmed payment cannot be
// linked to an existing client. Funds are never left unrecorded purely
// because account linkage failed.
type Payment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Email           string    `gorm:"type:varchar(200);index" json:"email"`
	ProbateType     string    `gorm:"type:varchar(50)" json:"probate_type"`
	PaymentPlan     string    `gorm:"type:varchar(20)" json:"payment_plan"`
	AmountCents     int64     `gorm:"not null" json:"amount_cents"`
	Status          string    `gorm:"type:varchar(32);default:'completed'" json:"status"`
	OrderNumber     string    `gorm:"type:varchar(40)" json:"order_number"`
	StripeSessionID string    `gorm:"type:varchar(191);index" json:"stripe_session_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
