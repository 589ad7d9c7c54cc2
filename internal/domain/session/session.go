package session

import (
	"context"
	"errors"
	"time"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
)

var ErrInvalidInvoice = errors.New("invoice has no checkout link")

// Record is the cached state of one browser session.
type Record struct {
	sessionID string
	invoice   *invoice.Invoice
	createdAt time.Time
}

func NewRecord(sessionID string, inv *invoice.Invoice) (*Record, error) {
	if !inv.Usable() {
		return nil, ErrInvalidInvoice
	}
	return &Record{
		sessionID: sessionID,
		invoice:   inv,
		createdAt: time.Now(),
	}, nil
}

func ReconstructRecord(sessionID string, inv *invoice.Invoice, createdAt time.Time) *Record {
	return &Record{
		sessionID: sessionID,
		invoice:   inv,
		createdAt: createdAt,
	}
}

func (r *Record) SessionID() string {
	return r.sessionID
}

func (r *Record) Invoice() *invoice.Invoice {
	return r.invoice
}

func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// Store keeps at most one invoice per session. Find returns nil, nil when the
// session has nothing cached. Save returns the record the session holds after
// the call, which is an earlier live record when one already exists.
type Store interface {
	Find(ctx context.Context, sessionID string) (*Record, error)
	Save(ctx context.Context, record *Record) (*Record, error)
}
