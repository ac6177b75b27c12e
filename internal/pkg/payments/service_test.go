package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/estateline/estateline/app/models"
	"gorm.io/gorm"
)

type fakeRepo struct {
	clients  map[string]*models.Client
	cases    map[string]*models.CaseRecord
	promos   map[string]*models.PromoCode
	payments []*models.Payment
	events   map[string]*models.WebhookEvent

	clientErr  error
	paymentErr error
	promoErr   error

	nextEventID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients: map[string]*models.Client{},
		cases:   map[string]*models.CaseRecord{},
		promos:  map[string]*models.PromoCode{},
		events:  map[string]*models.WebhookEvent{},
	}
}

func (f *fakeRepo) FindClientByEmail(email string) (*models.Client, error) {
	if f.clientErr != nil {
		return nil, f.clientErr
	}
	c, ok := f.clients[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeRepo) SaveClient(c *models.Client) error {
	if f.clientErr != nil {
		return f.clientErr
	}
	f.clients[c.Email] = c
	return nil
}

func (f *fakeRepo) FindCaseByRef(ref string) (*models.CaseRecord, error) {
	r, ok := f.cases[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeRepo) SaveCase(r *models.CaseRecord) error {
	f.cases[r.CaseRef] = r
	return nil
}

func (f *fakeRepo) CreatePayment(p *models.Payment) error {
	if f.paymentErr != nil {
		return f.paymentErr
	}
	f.payments = append(f.payments, p)
	return nil
}

func (f *fakeRepo) IncrementPromoUsage(code string, usedAt time.Time) error {
	if f.promoErr != nil {
		return f.promoErr
	}
	p, ok := f.promos[code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.UsageCount++
	p.LastUsedAt = &usedAt
	return nil
}

func (f *fakeRepo) CreateWebhookEvent(e *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := e.Provider + "/" + e.ProviderEventID
	if stored, ok := f.events[key]; ok {
		return false, stored, nil
	}
	f.nextEventID++
	e.ID = f.nextEventID
	f.events[key] = e
	return true, e, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.sent = append(r.sent, to)
	return r.err
}

func newTestService(repo Repository, sender *recordingSender) *Service {
	svc := NewService(repo, NewNotifier(sender, "admin@estateline.test"))
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return svc
}

func TestReconcileUnknownEmailRecordsStandalonePayment(t *testing.T) {
	repo := newFakeRepo()
	sender := &recordingSender{}
	svc := newTestService(repo, sender)

	res := svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "Stranger@Example.com",
		ProbateType:      "full",
		PaymentPlan:      "full",
		SessionID:        "cs_123",
		AmountTotalCents: 599000,
	})

	if !res.Success || res.Action != ActionPaymentRecorded {
		t.Fatalf("expected payment_recorded success, got %+v", res)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected one standalone payment, got %d", len(repo.payments))
	}
	p := repo.payments[0]
	if p.Email != "stranger@example.com" {
		t.Fatalf("payment email %q not lower-cased", p.Email)
	}
	if p.AmountCents != 599000 || p.Status != models.PaymentRecordCompleted {
		t.Fatalf("unexpected payment record %+v", p)
	}
	if p.OrderNumber == "" || !strings.HasPrefix(p.OrderNumber, "EL-") {
		t.Fatalf("expected an order number, got %q", p.OrderNumber)
	}
	// Admin and customer notifications both went out.
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sender.sent))
	}
}

func TestReconcileUpdatesExistingClient(t *testing.T) {
	repo := newFakeRepo()
	repo.clients["heir@example.com"] = &models.Client{
		Email: "heir@example.com",
		Name:  "Jamie Heir",
	}
	repo.cases["case-42"] = &models.CaseRecord{CaseRef: "case-42"}
	svc := newTestService(repo, &recordingSender{})

	res := svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "HEIR@example.com",
		ProbateType:      "simplified",
		PaymentPlan:      "full",
		SessionID:        "cs_456",
		CaseID:           "case-42",
		AmountTotalCents: 249500,
	})

	if !res.Success || res.Action != ActionUpdated {
		t.Fatalf("expected updated success, got %+v", res)
	}
	if res.CustomerName != "Jamie Heir" {
		t.Fatalf("expected customer name back, got %q", res.CustomerName)
	}

	c := repo.clients["heir@example.com"]
	if c.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %q, want paid", c.PaymentStatus)
	}
	if c.AmountPaidCents != 249500 || c.StripeSessionID != "cs_456" {
		t.Fatalf("unexpected client state %+v", c)
	}
	if c.InstallmentsRemaining == nil || *c.InstallmentsRemaining != 0 {
		t.Fatalf("full plan must leave 0 installments remaining")
	}
	if c.PaidAt == nil {
		t.Fatalf("paidAt not stamped")
	}

	mirrored := repo.cases["case-42"]
	if mirrored.PaymentStatus != models.PaymentStatusPaid || mirrored.PaidAt == nil {
		t.Fatalf("case not mirrored: %+v", mirrored)
	}
}

func TestReconcileInstallmentsPlanSetsRemaining(t *testing.T) {
	repo := newFakeRepo()
	repo.clients["heir@example.com"] = &models.Client{Email: "heir@example.com"}
	svc := newTestService(repo, &recordingSender{})

	svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "heir@example.com",
		PaymentPlan:      "installments",
		AmountTotalCents: 599000,
	})

	c := repo.clients["heir@example.com"]
	if c.PaymentStatus != models.PaymentStatusInstallmentsActive {
		t.Fatalf("status = %q, want installments_active", c.PaymentStatus)
	}
	if c.InstallmentsRemaining == nil || *c.InstallmentsRemaining != 2 {
		t.Fatalf("expected 2 installments remaining")
	}
}

func TestReconcileIsIdempotentForClientState(t *testing.T) {
	repo := newFakeRepo()
	repo.clients["heir@example.com"] = &models.Client{Email: "heir@example.com"}
	repo.promos["SPRING25"] = &models.PromoCode{Code: "SPRING25"}
	svc := newTestService(repo, &recordingSender{})

	in := ReconcileInput{
		CustomerEmail:    "heir@example.com",
		PaymentPlan:      "full",
		PromoCode:        "SPRING25",
		AmountTotalCents: 249500,
	}
	svc.Reconcile(context.Background(), in)
	first := *repo.clients["heir@example.com"]
	svc.Reconcile(context.Background(), in)
	second := *repo.clients["heir@example.com"]

	// Absolute fields are overwritten, so redelivery leaves the final state
	// unchanged...
	if first.PaymentStatus != second.PaymentStatus || first.AmountPaidCents != second.AmountPaidCents {
		t.Fatalf("client state changed across redelivery: %+v vs %+v", first, second)
	}
	// ...but the promo counter is incremented each time. This is the known
	// duplicate-delivery gap; see DESIGN.md before changing it.
	if repo.promos["SPRING25"].UsageCount != 2 {
		t.Fatalf("promo usage = %d, expected the double count", repo.promos["SPRING25"].UsageCount)
	}
}

func TestReconcilePromoFailureDoesNotAbort(t *testing.T) {
	repo := newFakeRepo()
	repo.clients["heir@example.com"] = &models.Client{Email: "heir@example.com"}
	repo.promoErr = errors.New("promo store down")
	svc := newTestService(repo, &recordingSender{})

	res := svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "heir@example.com",
		PaymentPlan:      "full",
		PromoCode:        "SPRING25",
		AmountTotalCents: 249500,
	})
	if !res.Success {
		t.Fatalf("promo failure must not fail reconciliation")
	}
}

func TestReconcileNotificationFailureIsAbsorbed(t *testing.T) {
	repo := newFakeRepo()
	repo.clients["heir@example.com"] = &models.Client{Email: "heir@example.com"}
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := newTestService(repo, sender)

	res := svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "heir@example.com",
		PaymentPlan:      "full",
		AmountTotalCents: 249500,
	})
	if !res.Success {
		t.Fatalf("notification failure must not fail reconciliation")
	}
	if len(sender.sent) != 2 {
		t.Fatalf("both sends should have been attempted")
	}
}

func TestReconcileStoreFailureDegrades(t *testing.T) {
	repo := newFakeRepo()
	repo.clientErr = errors.New("store unreachable")
	svc := newTestService(repo, &recordingSender{})

	res := svc.Reconcile(context.Background(), ReconcileInput{
		CustomerEmail:    "heir@example.com",
		PaymentPlan:      "full",
		AmountTotalCents: 249500,
	})
	if res.Success {
		t.Fatalf("expected degraded result when the store is unreachable")
	}
	if res.OrderNumber == "" {
		t.Fatalf("order number should still be generated")
	}
}

func TestRecordEventDeduplicatesStorageOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &recordingSender{})

	created, stored, err := svc.RecordEvent(context.Background(), EventInput{
		ProviderEventID: "evt_1", EventType: "checkout.session.completed", PayloadJSON: "{}", SignatureValid: true,
	})
	if err != nil || !created || stored.ID == 0 {
		t.Fatalf("first record: created=%v err=%v", created, err)
	}
	created, stored2, err := svc.RecordEvent(context.Background(), EventInput{
		ProviderEventID: "evt_1", EventType: "checkout.session.completed", PayloadJSON: "{}", SignatureValid: true,
	})
	if err != nil || created {
		t.Fatalf("duplicate record: created=%v err=%v", created, err)
	}
	if stored2.ID != stored.ID {
		t.Fatalf("duplicate must resolve to the stored event")
	}
}

func TestOrderNumbersArePrefixedAndDistinct(t *testing.T) {
	svc := newTestService(newFakeRepo(), &recordingSender{})
	a := svc.newOrderNumber()
	b := svc.newOrderNumber()
	if !strings.HasPrefix(a, "EL-") || !strings.HasPrefix(b, "EL-") {
		t.Fatalf("order numbers %q %q missing prefix", a, b)
	}
	if a == b {
		t.Fatalf("consecutive order numbers collided: %q", a)
	}
}
