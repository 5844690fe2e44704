package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/money"
)

type paymentRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &paymentRepoPG{pool: pool}
}

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const paymentCols = `id, appointment_id, provider, charge_id, amount::text, currency, method,
	status, failure_message, created_at`

// Create relies on payments_appointment_active_key to reject a second
// pending or successful payment for the same appointment.
func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, appointment_id, provider, charge_id, amount, currency,
			method, status, failure_message)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9)
		RETURNING created_at`,
		p.ID, p.AppointmentID, p.Provider, p.ChargeID, p.Amount.String(), p.Currency,
		p.Method, string(p.Status), p.FailureMessage,
	).Scan(&p.CreatedAt)
	return db.Classify(err)
}

func (r *paymentRepoPG) ListByAppointment(ctx context.Context, appointmentID string) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE appointment_id = $1 ORDER BY created_at DESC, id`,
		appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *paymentRepoPG) Settle(ctx context.Context, p *Payment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET status = $2, charge_id = $3, failure_message = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		p.ID, string(p.Status), p.ChargeID, p.FailureMessage)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		amount string
		status string
	)
	if err := row.Scan(&p.ID, &p.AppointmentID, &p.Provider, &p.ChargeID, &amount, &p.Currency,
		&p.Method, &status, &p.FailureMessage, &p.CreatedAt); err != nil {
		return nil, db.Classify(err)
	}
	a, err := money.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", p.ID, err)
	}
	p.Amount = a
	p.Status = Status(status)
	return &p, nil
}
