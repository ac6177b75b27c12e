package payments

import (
	"time"

	"github.com/estateline/estateline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the record-store operations used by the reconciler and
// the installment tracker.
type Repository interface {
	FindClientByEmail(email string) (*models.Client, error)
	SaveClient(client *models.Client) error
	FindCaseByRef(caseRef string) (*models.CaseRecord, error)
	SaveCase(record *models.CaseRecord) error
	CreatePayment(payment *models.Payment) error
	IncrementPromoUsage(code string, usedAt time.Time) error
	CreateWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindClientByEmail(email string) (*models.Client, error) {
	var client models.Client
	err := r.db.Where("email = ?", email).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *gormRepository) SaveClient(client *models.Client) error {
	return r.db.Save(client).Error
}

func (r *gormRepository) FindCaseByRef(caseRef string) (*models.CaseRecord, error) {
	var record models.CaseRecord
	err := r.db.Where("case_ref = ?", caseRef).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormRepository) SaveCase(record *models.CaseRecord) error {
	return r.db.Save(record).Error
}

func (r *gormRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// IncrementPromoUsage bumps the usage counter. There is deliberately no
// event-ID guard here; see DESIGN.md on duplicate delivery.
func (r *gormRepository) IncrementPromoUsage(code string, usedAt time.Time) error {
	res := r.db.Model(&models.PromoCode{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": &usedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) CreateWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
