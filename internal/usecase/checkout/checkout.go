package checkout

//go:generate mockgen -destination=mocks/invoice.go -package=mocks github.com/Xausdorf/btcpay-checkout/internal/domain/invoice Client,Publisher
//go:generate mockgen -destination=mocks/session.go -package=mocks github.com/Xausdorf/btcpay-checkout/internal/domain/session Store

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
	"github.com/Xausdorf/btcpay-checkout/internal/domain/session"
)

type UseCase struct {
	client    invoice.Client
	store     session.Store
	publisher invoice.Publisher
	template  invoice.Request
	logger    *slog.Logger

	flights singleflight.Group
}

// NewUseCase builds the checkout flow. publisher may be nil.
func NewUseCase(
	client invoice.Client,
	store session.Store,
	publisher invoice.Publisher,
	template invoice.Request,
	logger *slog.Logger,
) *UseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UseCase{
		client:    client,
		store:     store,
		publisher: publisher,
		template:  template,
		logger:    logger,
	}
}

// Execute returns the session's invoice, creating it on first use. Concurrent
// calls for one session share a single creation.
func (uc *UseCase) Execute(ctx context.Context, sessionID string) (*invoice.Invoice, error) {
	cached, err := uc.Cached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	// Callers joining the flight must not fail because the first caller went away.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := uc.flights.Do(sessionID, func() (any, error) {
		return uc.create(flightCtx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*invoice.Invoice), nil
}

// Cached returns the session's usable invoice or nil. It never calls the processor.
func (uc *UseCase) Cached(ctx context.Context, sessionID string) (*invoice.Invoice, error) {
	record, err := uc.store.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session invoice: %w", err)
	}
	if record == nil || !record.Invoice().Usable() {
		return nil, nil
	}
	return record.Invoice(), nil
}

func (uc *UseCase) create(ctx context.Context, sessionID string) (*invoice.Invoice, error) {
	cached, err := uc.Cached(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	inv, err := uc.client.CreateInvoice(ctx, uc.template)
	if err != nil {
		return nil, err
	}

	record, err := session.NewRecord(sessionID, inv)
	if err != nil {
		return nil, &invoice.InvalidResponseError{Reason: err.Error()}
	}
	stored, err := uc.store.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("save session invoice: %w", err)
	}
	if stored == nil || !stored.Invoice().Usable() {
		return nil, fmt.Errorf("save session invoice: %w", session.ErrInvalidInvoice)
	}

	if stored.Invoice().CheckoutLink != inv.CheckoutLink {
		uc.logger.Warn("session already holds another invoice, discarding new one",
			"session_id", sessionID,
			"discarded_invoice_id", inv.ID,
			"invoice_id", stored.Invoice().ID,
		)
		return stored.Invoice(), nil
	}

	uc.publish(ctx, sessionID, inv)

	return inv, nil
}

func (uc *UseCase) publish(ctx context.Context, sessionID string, inv *invoice.Invoice) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishCreated(ctx, sessionID, inv); err != nil {
		uc.logger.Warn("invoice created event not published",
			"session_id", sessionID,
			"invoice_id", inv.ID,
			"error", err,
		)
	}
}
