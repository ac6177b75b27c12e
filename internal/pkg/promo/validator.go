package promo

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/estateline/estateline/app/models"
	"gorm.io/gorm"
)

// Store provides the promo code lookups the validator needs.
type Store interface {
	FindActiveByCode(code string) (*models.PromoCode, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a promo store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindActiveByCode(code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.Where("code = ? AND is_active = ?", code, true).First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// Result is the outcome of a validation. CouponID and NormalizedCode are set
// only when Valid is true.
type Result struct {
	Valid          bool
	CouponID       string
	NormalizedCode string
}

// Validator checks promo codes against the record store. It is side-effect
// free: usage is counted later by the reconciler, tied to a completed
// payment, so abandoned checkouts never inflate usage.
type Validator struct {
	store Store
	now   func() time.Time
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate fails closed: any missing data or lookup failure yields an
// invalid result rather than an error.
func (v *Validator) Validate(code string) Result {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return Result{}
	}

	promo, err := v.store.FindActiveByCode(normalized)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("promo: lookup for %q failed: %v", normalized, err)
		}
		return Result{}
	}

	if promo.ExpiresAt != nil && v.now().After(*promo.ExpiresAt) {
		return Result{}
	}
	if promo.MaxUses != nil && promo.UsageCount >= *promo.MaxUses {
		return Result{}
	}

	return Result{
		Valid:          true,
		CouponID:       promo.StripeCouponID,
		NormalizedCode: promo.Code,
	}
}
