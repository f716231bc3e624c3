package intents

import (
	"context"
	"errors"
	"fmt"

	"zelton/internal/db"
	"zelton/internal/payments"

	"github.com/jackc/pgx/v5"
)

type PostgresStore struct{ q db.Querier }

func NewPostgresStore(q db.Querier) *PostgresStore { return &PostgresStore{q: q} }

const intentColumns = `order_id, kind, amount, currency, payer_id, payer_name, payer_email,
		       push_token, plan_or_unit_ref, created_at`

func (s *PostgresStore) Save(ctx context.Context, in payments.Intent) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.q.Exec(ctx, `
		INSERT INTO payment_intents (`+intentColumns+`)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'INR'), $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO UPDATE
		   SET push_token = EXCLUDED.push_token,
		       updated_at = now()
	`, in.OrderID, string(in.Kind), in.Amount, in.Currency, in.PayerID, in.PayerName, in.PayerEmail,
		in.PushToken, in.PlanOrUnitRef, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("save payment intent: %w", err)
	}
	return nil
}

func scanIntent(row pgx.Row) (*payments.Intent, error) {
	var (
		in   payments.Intent
		kind string
	)
	if err := row.Scan(
		&in.OrderID, &kind, &in.Amount, &in.Currency, &in.PayerID, &in.PayerName, &in.PayerEmail,
		&in.PushToken, &in.PlanOrUnitRef, &in.CreatedAt,
	); err != nil {
		return nil, err
	}
	in.Kind = payments.Kind(kind)
	return &in, nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*payments.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	in, err := scanIntent(s.q.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents WHERE order_id = $1
	`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) Delete(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := s.q.Exec(ctx, `DELETE FROM payment_intents WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete payment intent: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]payments.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.q.Query(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		ORDER BY created_at ASC, order_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	defer rows.Close()

	var out []payments.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment intent: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
