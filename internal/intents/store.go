// Package intents persists in-flight payment intents so polling can resume
// after a restart. Records are written before polling starts and removed once
// the payment resolves.
package intents

import (
	"context"
	"errors"
	"time"

	"zelton/internal/payments"
)

var (
	ErrNotFound          = errors.New("payment intent not found")
	QueryTimeoutDuration = time.Second * 5
)

type Store interface {
	Save(ctx context.Context, intent payments.Intent) error
	Get(ctx context.Context, orderID string) (*payments.Intent, error)
	Delete(ctx context.Context, orderID string) error
	List(ctx context.Context) ([]payments.Intent, error)
}
