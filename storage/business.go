package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paycrest/e2e/types"
)

// BusinessRepository reads the business layer's payments and gateway logs
type BusinessRepository struct {
	db *sql.DB
}

// NewBusinessRepository returns a BusinessRepository over the business pool
func NewBusinessRepository(db *sql.DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// PaymentByToken fetches a payment; its amount is in minor units
func (r *BusinessRepository) PaymentByToken(ctx context.Context, token string) (*types.BusinessPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token, status, amount, currency, data, created_at FROM payments WHERE token = $1`, token)

	var payment types.BusinessPayment
	var data []byte
	err := row.Scan(&payment.Token, &payment.Status, &payment.Amount, &payment.Currency, &data, &payment.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("PaymentByToken %s: %w", token, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("PaymentByToken: %w", err)
	}
	payment.Data = data

	return &payment, nil
}

// InteractionLogs lists the gateway exchanges recorded for a payment
func (r *BusinessRepository) InteractionLogs(ctx context.Context, token string) ([]types.InteractionLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token, kind, COALESCE(request_body, ''), COALESCE(response_body, ''), created_at
		FROM interaction_logs WHERE token = $1 ORDER BY id`, token)
	if err != nil {
		return nil, fmt.Errorf("InteractionLogs: %w", err)
	}
	defer rows.Close()

	var logs []types.InteractionLog
	for rows.Next() {
		var l types.InteractionLog
		if err := rows.Scan(&l.ID, &l.Token, &l.Kind, &l.RequestBody, &l.ResponseBody, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("InteractionLogs: %w", err)
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}
