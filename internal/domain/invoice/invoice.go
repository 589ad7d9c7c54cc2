package invoice

import (
	"context"

	"github.com/shopspring/decimal"
)

type Request struct {
	Amount      decimal.Decimal
	Currency    string
	ItemDesc    string
	RedirectURL string
}

type Invoice struct {
	ID           string         `json:"id"`
	CheckoutLink string         `json:"checkoutLink"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Usable reports whether the invoice can be used to send a customer to checkout.
func (i *Invoice) Usable() bool {
	return i != nil && i.CheckoutLink != ""
}

type Client interface {
	CreateInvoice(ctx context.Context, req Request) (*Invoice, error)
}

type Publisher interface {
	PublishCreated(ctx context.Context, sessionID string, inv *Invoice) error
}
