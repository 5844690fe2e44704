package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/appointment"
	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/events"
	"github.com/medibook/medibook/internal/platform/notification"
	"github.com/medibook/medibook/internal/platform/validate"
)

const alreadyPaid = "Appointment is already paid or has a payment in progress"

// Appointments is the slice of the appointment service payments need.
type Appointments interface {
	Get(ctx context.Context, id string) (*appointment.Appointment, error)
	Recipient(ctx context.Context, a *appointment.Appointment) string
	Authorize(ctx context.Context, id string, manage bool) (*appointment.Appointment, error)
}

type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo     Repository
	appts    Appointments
	gateway  Gateway
	currency string
	notifier Notifier
	events   *events.Emitter
	logger   zerolog.Logger
}

func NewService(repo Repository, appts Appointments, gateway Gateway, currency string,
	notifier Notifier, em *events.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		appts:    appts,
		gateway:  gateway,
		currency: strings.ToUpper(currency),
		notifier: notifier,
		events:   em,
		logger:   logger,
	}
}

// Pay charges the appointment fee. A declined charge is stored as failed and
// returned alongside a PaymentDeclined error.
func (s *Service) Pay(ctx context.Context, appointmentID string, req ChargeRequest) (*Payment, error) {
	req.Token = strings.TrimSpace(req.Token)
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = MethodCard
	}

	a, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status == appointment.StatusCancelled {
		return nil, apperr.Conflict("Cannot pay for a cancelled appointment")
	}

	// The pending row claims the appointment before any money moves, so a
	// concurrent Pay fails here rather than charging the card twice.
	p := &Payment{
		AppointmentID: a.ID,
		Provider:      s.gateway.Name(),
		Amount:        a.Fee,
		Currency:      s.currency,
		Method:        req.Method,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, apperr.Conflict(alreadyPaid)
		}
		return nil, apperr.Internal("claim payment", err)
	}

	res, err := s.gateway.Charge(ctx, Charge{
		AppointmentID: a.ID,
		Amount:        a.Fee,
		Currency:      s.currency,
		Method:        req.Method,
		Token:         req.Token,
	})
	if err != nil {
		p.Status = StatusFailed
		msg := "gateway unavailable"
		p.FailureMessage = &msg
		if serr := s.settle(ctx, p); serr != nil {
			s.logger.Error().Err(serr).Str("payment_id", p.ID).Msg("failed payment left pending")
		}
		return nil, apperr.Internal("charge appointment fee", err)
	}

	p.ChargeID = res.ChargeID
	p.Status = StatusSucceeded
	if !res.Succeeded {
		p.Status = StatusFailed
		msg := res.FailureMessage
		p.FailureMessage = &msg
	}
	if err := s.settle(ctx, p); err != nil {
		// The row stays pending and keeps blocking new charges until resolved.
		s.logger.Error().Err(err).
			Str("payment_id", p.ID).
			Str("charge_id", res.ChargeID).
			Msg("charge outcome not recorded")
		return nil, apperr.Internal("record payment", err)
	}

	if !res.Succeeded {
		s.logger.Info().
			Str("appointment_id", a.ID).
			Str("charge_id", res.ChargeID).
			Str("failure_code", res.FailureCode).
			Msg("payment declined")
		s.events.Emit(ctx, events.PaymentFailed, p)
		return p, apperr.PaymentDeclined("Payment declined", map[string]string{
			"paymentId": p.ID,
			"reason":    res.FailureMessage,
		})
	}

	s.events.Emit(ctx, events.PaymentSucceeded, p)
	s.sendReceipt(ctx, a, p)
	return p, nil
}

// settle stores the outcome even after the request context has ended.
func (s *Service) settle(ctx context.Context, p *Payment) error {
	return s.repo.Settle(context.WithoutCancel(ctx), p)
}

// Authorize checks that the caller may see the appointment's payments.
func (s *Service) Authorize(ctx context.Context, appointmentID string) error {
	_, err := s.appts.Authorize(ctx, appointmentID, false)
	return err
}

func (s *Service) List(ctx context.Context, appointmentID string) ([]*Payment, error) {
	if _, err := s.appts.Get(ctx, appointmentID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Internal("list payments", err)
	}
	if payments == nil {
		payments = []*Payment{}
	}
	return payments, nil
}

func (s *Service) sendReceipt(ctx context.Context, a *appointment.Appointment, p *Payment) {
	if s.notifier == nil {
		return
	}
	data := appointment.TemplateData(a)
	data["amount"] = p.Amount.String()
	data["currency"] = p.Currency
	if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplatePaymentReceived, data, s.appts.Recipient(ctx, a)); err != nil {
		s.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("payment receipt not delivered")
	}
}
