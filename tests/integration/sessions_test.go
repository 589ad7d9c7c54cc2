package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
	"github.com/Xausdorf/btcpay-checkout/internal/domain/session"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/postgres"
)

func newSessionStore(t *testing.T, ttl time.Duration) (*postgres.SessionStore, *pgxpool.Pool) {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.NewSessionStore(pool, ttl)
	require.NoError(t, store.EnsureSchema(ctx))
	return store, pool
}

func cleanupSession(t *testing.T, pool *pgxpool.Pool, sessionID string) {
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM checkout_sessions WHERE session_id = $1`, sessionID)
	})
}

func TestSessionStore_SaveAndFind(t *testing.T) {
	store, pool := newSessionStore(t, time.Hour)
	ctx := context.Background()
	sessionID := uuid.NewString()
	cleanupSession(t, pool, sessionID)

	record, err := session.NewRecord(sessionID, &invoice.Invoice{
		ID:           "inv-1",
		CheckoutLink: "https://pay.example/inv/1",
		Fields:       map[string]any{"status": "New"},
	})
	require.NoError(t, err)
	stored, err := store.Save(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", stored.Invoice().ID)

	found, err := store.Find(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "inv-1", found.Invoice().ID)
	assert.Equal(t, "https://pay.example/inv/1", found.Invoice().CheckoutLink)
	assert.Equal(t, "New", found.Invoice().Fields["status"])
}

func TestSessionStore_FirstInvoiceWins(t *testing.T) {
	store, pool := newSessionStore(t, time.Hour)
	ctx := context.Background()
	sessionID := uuid.NewString()
	cleanupSession(t, pool, sessionID)

	first, err := session.NewRecord(sessionID, &invoice.Invoice{ID: "first", CheckoutLink: "https://pay.example/inv/first"})
	require.NoError(t, err)
	second, err := session.NewRecord(sessionID, &invoice.Invoice{ID: "second", CheckoutLink: "https://pay.example/inv/second"})
	require.NoError(t, err)

	stored, err := store.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Invoice().ID)

	stored, err = store.Save(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Invoice().ID)
	assert.Equal(t, "https://pay.example/inv/first", stored.Invoice().CheckoutLink)

	found, err := store.Find(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "first", found.Invoice().ID)
}

func TestSessionStore_RejectsInvoiceWithoutLink(t *testing.T) {
	store, _ := newSessionStore(t, time.Hour)

	bad := session.ReconstructRecord(uuid.NewString(), &invoice.Invoice{ID: "x"}, time.Now())
	_, err := store.Save(context.Background(), bad)
	require.ErrorIs(t, err, session.ErrInvalidInvoice)
}

func TestSessionStore_ExpiredRecords(t *testing.T) {
	store, pool := newSessionStore(t, time.Minute)
	ctx := context.Background()
	sessionID := uuid.NewString()
	cleanupSession(t, pool, sessionID)

	old := session.ReconstructRecord(sessionID, &invoice.Invoice{ID: "old", CheckoutLink: "https://pay.example/inv/old"}, time.Now().Add(-time.Hour))
	_, err := store.Save(ctx, old)
	require.NoError(t, err)

	found, err := store.Find(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, found)

	evicted, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, evicted, int64(1))
}

func TestSessionStore_SaveReplacesExpiredRecord(t *testing.T) {
	store, pool := newSessionStore(t, time.Minute)
	ctx := context.Background()
	sessionID := uuid.NewString()
	cleanupSession(t, pool, sessionID)

	old := session.ReconstructRecord(sessionID, &invoice.Invoice{ID: "old", CheckoutLink: "https://pay.example/inv/old"}, time.Now().Add(-time.Hour))
	_, err := store.Save(ctx, old)
	require.NoError(t, err)

	fresh, err := session.NewRecord(sessionID, &invoice.Invoice{ID: "fresh", CheckoutLink: "https://pay.example/inv/fresh"})
	require.NoError(t, err)

	stored, err := store.Save(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.Invoice().ID)
}
