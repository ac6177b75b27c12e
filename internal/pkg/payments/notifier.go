package payments

import (
	"fmt"
	"log"

	"github.com/estateline/estateline/internal/pkg/mail"
)

// Notifier sends best-effort admin and customer notifications. Its methods
// return nothing: a gateway failure is absorbed here and visible only in
// logs, never to the webhook handler or the provider.
type Notifier struct {
	sender     mail.Sender
	adminEmail string
}

func NewNotifier(sender mail.Sender, adminEmail string) *Notifier {
	return &Notifier{sender: sender, adminEmail: adminEmail}
}

// PaymentReceived notifies the admin and the customer about a reconciled
// payment. Called after every reconciliation attempt regardless of outcome.
func (n *Notifier) PaymentReceived(customerEmail, customerName, orderNumber string, amountCents int64, plan string) {
	if n == nil || n.sender == nil {
		return
	}

	amount := fmt.Sprintf("$%d.%02d", amountCents/100, amountCents%100)

	if n.adminEmail != "" {
		subject := fmt.Sprintf("Payment received - order %s", orderNumber)
		body := fmt.Sprintf(
			"<p>Payment of %s received from %s (%s).</p><p>Plan: %s<br>Order: %s</p>",
			amount, customerName, customerEmail, plan, orderNumber,
		)
		if err := n.sender.Send(n.adminEmail, subject, body); err != nil {
			log.Printf("notify: admin email failed: %v", err)
		}
	}

	if customerEmail != "" {
		subject := "Your payment confirmation"
		body := fmt.Sprintf(
			"<p>Thank you! We received your payment of %s.</p><p>Your order number is <strong>%s</strong>. Keep it for your records.</p>",
			amount, orderNumber,
		)
		if err := n.sender.Send(customerEmail, subject, body); err != nil {
			log.Printf("notify: customer email failed: %v", err)
		}
	}
}
