package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/medibook/medibook/internal/platform/money"
)

// Charge is what the service asks a gateway to collect.
type Charge struct {
	AppointmentID string
	Amount        money.Amount
	Currency      string
	Method        string
	Token         string
}

// ChargeResult is the gateway outcome. A declined charge is a result with
// Succeeded false, not an error; errors mean the gateway could not be reached.
type ChargeResult struct {
	ChargeID       string
	Succeeded      bool
	FailureCode    string
	FailureMessage string
}

type Gateway interface {
	Name() string
	Charge(ctx context.Context, ch Charge) (*ChargeResult, error)
}

// DeclineToken makes MockGateway decline the charge.
const DeclineToken = "tok_fail"

// MockGateway approves every charge after Delay unless the token is
// DeclineToken.
type MockGateway struct {
	Delay time.Duration
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Charge(ctx context.Context, ch Charge) (*ChargeResult, error) {
	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	res := &ChargeResult{ChargeID: "chrg_mock_" + strings.ReplaceAll(uuid.New().String(), "-", "")}
	if ch.Token == DeclineToken {
		res.FailureCode = "payment_rejected"
		res.FailureMessage = "the card was declined"
		return res, nil
	}
	res.Succeeded = true
	return res, nil
}

// OmiseGateway charges through the Omise API.
type OmiseGateway struct {
	client *omise.Client
}

func NewOmiseGateway(publicKey, secretKey string) (*OmiseGateway, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	return &OmiseGateway{client: client}, nil
}

func (g *OmiseGateway) Name() string { return "omise" }

// Charge creates the charge synchronously. The omise client has no context
// support, so cancellation only applies before the request is sent.
func (g *OmiseGateway) Charge(ctx context.Context, ch Charge) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &omise.Charge{}
	if err := g.client.Do(result, chargeOperation(ch)); err != nil {
		return nil, fmt.Errorf("omise create charge: %w", err)
	}

	res := &ChargeResult{ChargeID: result.ID}
	switch string(result.Status) {
	case "successful":
		res.Succeeded = true
	default:
		if result.FailureCode != nil {
			res.FailureCode = *result.FailureCode
		}
		res.FailureMessage = "charge " + string(result.Status)
		if result.FailureMessage != nil {
			res.FailureMessage = *result.FailureMessage
		}
	}
	return res, nil
}

func chargeOperation(ch Charge) *operations.CreateCharge {
	op := &operations.CreateCharge{
		Amount:   ch.Amount.MinorUnits(),
		Currency: strings.ToLower(ch.Currency),
		Metadata: map[string]interface{}{"appointment_id": ch.AppointmentID},
	}
	if ch.Method == MethodPromptPay {
		op.Source = ch.Token
	} else {
		op.Card = ch.Token
	}
	return op
}
