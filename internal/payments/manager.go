package payments

import (
	"context"
	"fmt"
)

type PaymentManager struct {
	verifiers map[Kind]Verifier
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{verifiers: make(map[Kind]Verifier)}
}

func (m *PaymentManager) RegisterVerifier(kind Kind, v Verifier) {
	m.verifiers[kind] = v
}

func (m *PaymentManager) Supports(kind Kind) bool {
	_, ok := m.verifiers[kind]
	return ok
}

func (m *PaymentManager) VerifyPayment(ctx context.Context, kind Kind, orderID string) (VerifyResponse, error) {
	v, ok := m.verifiers[kind]
	if !ok {
		return VerifyResponse{}, fmt.Errorf("verifier not registered: %s", kind)
	}
	return v.VerifyPayment(ctx, orderID)
}

// ForKind binds the manager to one payment kind so it can be used wherever a
// plain Verifier is expected.
func (m *PaymentManager) ForKind(kind Kind) Verifier {
	return kindVerifier{m: m, kind: kind}
}

type kindVerifier struct {
	m    *PaymentManager
	kind Kind
}

func (k kindVerifier) VerifyPayment(ctx context.Context, orderID string) (VerifyResponse, error) {
	return k.m.VerifyPayment(ctx, k.kind, orderID)
}
