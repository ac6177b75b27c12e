package models

import "time"

// CaseRecord mirrors payment state onto a probate case when the checkout
// metadata carried a case reference. Updated opportunistically.
type CaseRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CaseRef       string     `gorm:"uniqueIndex;type:varchar(64)" json:"case_ref"`
	ClientEmail   string     `gorm:"type:varchar(200);index" json:"client_email"`
	ProbateType   string     `gorm:"type:varchar(50)" json:"probate_type"`
	PaymentStatus string     `gorm:"type:varchar(32);default:'none'" json:"payment_status"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
