package payments

import "context"

// Verifier checks the current state of a payment with the backend.
type Verifier interface {
	VerifyPayment(ctx context.Context, orderID string) (VerifyResponse, error)
}
