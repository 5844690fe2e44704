package payment

import (
	"time"

	"github.com/medibook/medibook/internal/platform/money"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment methods accepted by the gateways.
const (
	MethodCard      = "card"
	MethodPromptPay = "promptpay"
)

// Payment is one charge attempt against an appointment's fee. An attempt is
// pending while the gateway call runs; declined attempts are kept as failed.
type Payment struct {
	ID             string       `json:"id"`
	AppointmentID  string       `json:"appointmentId"`
	Provider       string       `json:"provider"`
	ChargeID       string       `json:"chargeId,omitempty"`
	Amount         money.Amount `json:"amount"`
	Currency       string       `json:"currency"`
	Method         string       `json:"method"`
	Status         Status       `json:"status"`
	FailureMessage *string      `json:"failureMessage,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ChargeRequest is the body of POST /appointments/{id}/payments. Token is a
// card token, or a source id when Method is promptpay.
type ChargeRequest struct {
	Token  string `json:"token" validate:"required"`
	Method string `json:"method" validate:"omitempty,oneof=card promptpay"`
}
