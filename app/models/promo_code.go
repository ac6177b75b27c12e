package models

import "time"

// PromoCode references a provider-side coupon via an internally tracked
// record. Codes are stored normalized (uppercase, trimmed). UsageCount is
// incremented by the reconciler once per completed purchase, never at
// validation time.
type PromoCode struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Code           string     `gorm:"uniqueIndex;type:varchar(64)" json:"code" validate:"required,min=2,max=64"`
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	StripeCouponID string     `gorm:"type:varchar(191)" json:"stripe_coupon_id"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	MaxUses        *int       `gorm:"default:null" json:"max_uses,omitempty"`
	UsageCount     int        `gorm:"default:0" json:"usage_count"`
	LastUsedAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
