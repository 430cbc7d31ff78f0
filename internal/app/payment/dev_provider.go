package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// DevProvider mints orders locally. It is used when no provider keys are
// configured and in tests.
type DevProvider struct {
	// Fail makes CreateOrder return ErrProvider.
	Fail bool
}

func NewDevProvider() *DevProvider {
	return &DevProvider{}
}

func (p *DevProvider) KeyID() string {
	return "dev"
}

func (p *DevProvider) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	if p.Fail {
		return Order{}, ErrProvider
	}
	return Order{
		ID:       "order_dev_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}
