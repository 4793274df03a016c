package payments

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/square"
)

// Verification is the gateway's view of a payment.
type Verification struct {
	Success          bool
	AmountMinorUnits int64
	Currency         string
	GatewayReference string
}

// Verifier confirms that a gateway payment happened.
type Verifier interface {
	Verify(ctx context.Context, gatewayReference string) (*Verification, error)
}

type paymentGetter interface {
	GetPayment(ctx context.Context, paymentID string) (*square.Payment, error)
}

// SquareVerifier treats the gateway reference as a Square payment id.
type SquareVerifier struct {
	client paymentGetter
}

func NewSquareVerifier(client paymentGetter) (*SquareVerifier, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client required")
	}
	return &SquareVerifier{client: client}, nil
}

func (v *SquareVerifier) Verify(ctx context.Context, gatewayReference string) (*Verification, error) {
	payment, err := v.client.GetPayment(ctx, gatewayReference)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Success:          payment.Completed(),
		AmountMinorUnits: payment.Amount,
		Currency:         strings.ToUpper(payment.Currency),
		GatewayReference: payment.ID,
	}, nil
}
