package notifications

import (
	"context"
	"fmt"
	"strconv"

	"zelton/internal/payments"
	"zelton/internal/poller"

	"github.com/9ssi7/exponent"
)

// PushNotifier tells the payer's device how a payment resolved.
type PushNotifier struct {
	push PushSender
}

func NewPushNotifier(push PushSender) *PushNotifier {
	return &PushNotifier{push: push}
}

func (n *PushNotifier) Name() string { return "push" }

func (n *PushNotifier) Notify(ctx context.Context, intent payments.Intent, res poller.Result) error {
	if intent.PushToken == "" {
		return nil
	}

	amount := payments.FormatAmount(intent.Amount) + " " + intent.Currency

	var title, body string
	switch {
	case res.Outcome == payments.Completed:
		title = "Payment Successful"
		body = fmt.Sprintf("Your payment of %s was received. 🎉", amount)
	case res.Reason == poller.ReasonTimeout:
		title = "Payment Pending"
		body = fmt.Sprintf("We couldn't confirm your payment of %s yet. Please check again later.", amount)
	default:
		title = "Payment Failed"
		body = fmt.Sprintf("Your payment of %s did not go through. You can retry from the app.", amount)
	}

	token := exponent.Token(intent.PushToken)
	msg := &exponent.Message{
		To:    []*exponent.Token{&token},
		Title: title,
		Body:  body,
		// Data drives deep linking when the notification is tapped.
		Data: map[string]string{
			"type":     "payment",
			"orderId":  res.OrderID,
			"outcome":  string(res.Outcome),
			"reason":   res.Reason,
			"attempts": strconv.Itoa(res.Attempts),
			"screen":   "payment-status",
		},
	}

	if _, err := n.push.PublishSingle(ctx, msg); err != nil {
		return fmt.Errorf("push payment outcome: %w", err)
	}
	return nil
}
