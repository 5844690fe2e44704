package payment

import "context"

type Repository interface {
	// Create inserts a pending attempt. It fails with db.ErrConflict while
	// the appointment has another pending or succeeded payment.
	Create(ctx context.Context, p *Payment) error
	// Settle records the gateway outcome of a pending attempt.
	Settle(ctx context.Context, p *Payment) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]*Payment, error)
}
