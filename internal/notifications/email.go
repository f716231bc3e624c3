package notifications

import (
	"context"
	"fmt"

	"zelton/internal/mailer"
	"zelton/internal/payments"
	"zelton/internal/poller"
)

// EmailNotifier mails the payer a receipt or a failure notice.
type EmailNotifier struct {
	mailer mailer.Client
}

func NewEmailNotifier(m mailer.Client) *EmailNotifier {
	return &EmailNotifier{mailer: m}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(_ context.Context, intent payments.Intent, res poller.Result) error {
	if intent.PayerEmail == "" {
		return nil
	}

	tmpl := mailer.PaymentFailedTemplate
	if res.Outcome == payments.Completed {
		tmpl = mailer.PaymentCompletedTemplate
	}

	username := intent.PayerName
	if username == "" {
		username = intent.PayerEmail
	}

	vars := struct {
		Username  string
		OrderID   string
		Amount    string
		Currency  string
		Reference string
		Reason    string
	}{
		Username:  username,
		OrderID:   intent.OrderID,
		Amount:    payments.FormatAmount(intent.Amount),
		Currency:  intent.Currency,
		Reference: intent.PlanOrUnitRef,
		Reason:    res.Reason,
	}

	if _, err := n.mailer.Send(tmpl, username, intent.PayerEmail, vars); err != nil {
		return fmt.Errorf("mail payment outcome: %w", err)
	}
	return nil
}
