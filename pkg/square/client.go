// Package square verifies gateway charges against the Square Payments API.
package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/walletcore/pkg/config"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

// PaymentStatusCompleted is the only Square status that counts as paid.
const PaymentStatusCompleted = "COMPLETED"

var endpoints = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type paymentsAPI interface {
	Get(ctx context.Context, request *sq.GetPaymentsRequest, opts ...sqoption.RequestOption) (*sq.GetPaymentResponse, error)
}

// Client looks up payments by id.
type Client struct {
	payments paymentsAPI
	logg     *logger.Logger
}

// Payment is the part of a Square payment the verifier compares. Amount is
// in minor units of Currency.
type Payment struct {
	ID          string
	Status      string
	Amount      int64
	Currency    string
	ReferenceID string
}

func (p Payment) Completed() bool {
	return p.Status == PaymentStatusCompleted
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square: logger is required")
	}
	env := cfg.Environment()
	baseURL, ok := endpoints[env]
	if !ok {
		return nil, fmt.Errorf("square: unknown environment %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square: access token is required")
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token))
	logg.Info(logg.WithField(ctx, "square_env", env), "square client ready")
	return &Client{payments: sdk.Payments, logg: logg}, nil
}

// GetPayment fetches a payment. A response without a payment is NOT_FOUND.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	resp, err := c.payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		mapped := classify(err, "get payment")
		if c.logg != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"payment_id": paymentID,
				"error":      err.Error(),
			}), "square payment lookup failed")
		}
		return nil, mapped
	}

	payment := fromSDK(resp.GetPayment())
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square payment not found")
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
			"payment_id": payment.ID,
			"status":     payment.Status,
			"amount":     payment.Amount,
		}), "square payment fetched")
	}
	return payment, nil
}

func fromSDK(p *sq.Payment) *Payment {
	if p == nil {
		return nil
	}
	out := &Payment{
		ID:          deref(p.GetID()),
		Status:      deref(p.GetStatus()),
		ReferenceID: deref(p.GetReferenceID()),
	}
	if money := p.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.Amount = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			out.Currency = string(*currency)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
