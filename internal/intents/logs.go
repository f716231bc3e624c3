package intents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zelton/internal/db"
	"zelton/internal/payments"
	"zelton/internal/poller"
)

// LogTypeOutcome marks a row written when a poll resolved.
const LogTypeOutcome = "outcome"

type PaymentLog struct {
	ID        int64            `json:"id"`
	OrderID   string           `json:"order_id"`
	Kind      payments.Kind    `json:"kind"`
	LogType   string           `json:"log_type"`
	Outcome   payments.Outcome `json:"outcome"`
	Reason    string           `json:"reason,omitempty"`
	Attempts  int              `json:"attempts"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// LogsRepository keeps an append-only audit trail of poll outcomes. It
// outlives the intent rows, which are deleted once a poll resolves.
type LogsRepository struct{ q db.Querier }

func NewLogsRepository(q db.Querier) *LogsRepository {
	return &LogsRepository{q: q}
}

func (r *LogsRepository) Name() string { return "payment_logs" }

// Notify records res for intent.
func (r *LogsRepository) Notify(ctx context.Context, intent payments.Intent, res poller.Result) error {
	payload := map[string]any{
		"amount":           intent.Amount,
		"currency":         intent.Currency,
		"payer_id":         intent.PayerID,
		"plan_or_unit_ref": intent.PlanOrUnitRef,
	}
	if res.Err != nil {
		payload["error"] = res.Err.Error()
	}
	jb, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payment_log payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err = r.q.Exec(ctx, `
		INSERT INTO payment_logs (order_id, kind, log_type, outcome, reason, attempts, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, intent.OrderID, string(intent.Kind), LogTypeOutcome, string(res.Outcome), res.Reason, res.Attempts, jb)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}

// ListByOrder returns the log rows of orderID, oldest first.
func (r *LogsRepository) ListByOrder(ctx context.Context, orderID string) ([]PaymentLog, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, kind, log_type, outcome, reason, attempts, payload, created_at
		  FROM payment_logs
		 WHERE order_id = $1
		 ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment_logs: %w", err)
	}
	defer rows.Close()

	var logs []PaymentLog
	for rows.Next() {
		var (
			l       PaymentLog
			kind    string
			outcome string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &kind, &l.LogType, &outcome, &l.Reason, &l.Attempts, &l.Payload, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment_log: %w", err)
		}
		l.Kind = payments.Kind(kind)
		l.Outcome = payments.Outcome(outcome)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
