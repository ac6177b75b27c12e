package payments

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/estateline/estateline/app/models"
	"github.com/estateline/estateline/internal/pkg/pricing"
	"gorm.io/gorm"
)

// Reconciliation actions reported back to the webhook handler.
const (
	ActionUpdated         = "updated"
	ActionPaymentRecorded = "payment_recorded"
)

// ReconcileInput carries everything the webhook leg reconstructed from
// session metadata plus the provider's own event fields. Nothing else is
// available: the two legs share no in-process state.
type ReconcileInput struct {
	CustomerEmail    string
	ProbateType      string
	PaymentPlan      string
	SessionID        string
	CaseID           string
	PromoCode        string
	AmountTotalCents int64
}

// ReconcileResult mirrors the reconciliation outcome. Success refers to the
// user/case record step only; promo and notification failures never flip it.
type ReconcileResult struct {
	Success      bool
	Action       string
	OrderNumber  string
	CustomerName string
}

// EventInput is the normalized input for webhook event persistence.
type EventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Service applies confirmed-payment events to client/case/promo records.
type Service struct {
	repo     Repository
	notifier *Notifier
	now      func() time.Time
}

func NewService(repo Repository, notifier *Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// Reconcile never returns an error: every step degrades gracefully and the
// caller always acknowledges the delivery. Failures land in the logs and in
// the Success flag.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) ReconcileResult {
	_ = ctx
	email := strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	orderNumber := s.newOrderNumber()
	result := ReconcileResult{OrderNumber: orderNumber}

	client, err := s.repo.FindClientByEmail(email)
	switch {
	case err == nil:
		result = s.applyToClient(client, in, orderNumber)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No linked client: record the funds standalone so a linkage gap
		// never loses a payment.
		result = s.recordStandalonePayment(email, in, orderNumber)
	default:
		log.Printf("reconcile: client lookup for %s failed: %v", email, err)
	}

	// Promo usage counts independently of the record outcome above.
	if code := strings.ToUpper(strings.TrimSpace(in.PromoCode)); code != "" {
		if err := s.repo.IncrementPromoUsage(code, s.now()); err != nil {
			log.Printf("reconcile: promo usage increment for %s failed: %v", code, err)
		}
	}

	// Best-effort notifications, even when reconciliation itself failed.
	s.notifier.PaymentReceived(email, result.CustomerName, result.OrderNumber, in.AmountTotalCents, in.PaymentPlan)

	return result
}

func (s *Service) applyToClient(client *models.Client, in ReconcileInput, orderNumber string) ReconcileResult {
	now := s.now()

	status := models.PaymentStatusPaid
	remaining := 0
	if in.PaymentPlan == pricing.PlanInstallments {
		status = models.PaymentStatusInstallmentsActive
		remaining = 2
	}

	client.PaymentStatus = status
	client.ProbateType = in.ProbateType
	client.PaymentPlan = in.PaymentPlan
	client.AmountPaidCents = in.AmountTotalCents
	client.OrderNumber = orderNumber
	client.PaidAt = &now
	client.InstallmentsRemaining = &remaining
	client.StripeSessionID = in.SessionID

	if err := s.repo.SaveClient(client); err != nil {
		log.Printf("reconcile: client update for %s failed: %v", client.Email, err)
		return ReconcileResult{OrderNumber: orderNumber, CustomerName: client.Name}
	}

	s.mirrorOntoCase(in.CaseID, status, now)

	return ReconcileResult{
		Success:      true,
		Action:       ActionUpdated,
		OrderNumber:  orderNumber,
		CustomerName: client.Name,
	}
}

// mirrorOntoCase is opportunistic: a missing or unreachable case never fails
// the reconciliation.
func (s *Service) mirrorOntoCase(caseID, status string, paidAt time.Time) {
	if strings.TrimSpace(caseID) == "" {
		return
	}
	record, err := s.repo.FindCaseByRef(caseID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("reconcile: case lookup for %s failed: %v", caseID, err)
		}
		return
	}
	record.PaymentStatus = status
	record.PaidAt = &paidAt
	if err := s.repo.SaveCase(record); err != nil {
		log.Printf("reconcile: case update for %s failed: %v", caseID, err)
	}
}

func (s *Service) recordStandalonePayment(email string, in ReconcileInput, orderNumber string) ReconcileResult {
	payment := &models.Payment{
		Email:           email,
		ProbateType:     in.ProbateType,
		PaymentPlan:     in.PaymentPlan,
		AmountCents:     in.AmountTotalCents,
		Status:          models.PaymentRecordCompleted,
		OrderNumber:     orderNumber,
		StripeSessionID: in.SessionID,
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		log.Printf("reconcile: standalone payment record for %s failed: %v", email, err)
		return ReconcileResult{OrderNumber: orderNumber}
	}
	return ReconcileResult{
		Success:     true,
		Action:      ActionPaymentRecorded,
		OrderNumber: orderNumber,
	}
}

// RecordEvent persists the webhook payload for audit. It does not gate
// processing; duplicate deliveries are still handled again downstream.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	event := &models.WebhookEvent{
		Provider:        models.ProviderStripe,
		ProviderEventID: strings.TrimSpace(in.ProviderEventID),
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEvent(event)
}

// MarkProcessed stamps an audit event as handled, with an optional error.
func (s *Service) MarkProcessed(ctx context.Context, eventID uint, processingErr error) {
	_ = ctx
	if eventID == 0 {
		return
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(eventID, errMsg); err != nil {
		log.Printf("reconcile: marking event %d processed failed: %v", eventID, err)
	}
}

// newOrderNumber derives a short, human-presentable identifier from the
// current millisecond timestamp. Collisions are accepted as negligible at
// this scale.
func (s *Service) newOrderNumber() string {
	ms := s.now().UnixMilli()
	return "EL-" + strings.ToUpper(strconv.FormatInt(ms, 36))
}
