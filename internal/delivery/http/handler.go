package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/qrgenerator"
	"github.com/Xausdorf/btcpay-checkout/internal/usecase/checkout"
)

const (
	payField = "pay"

	genericErrorMessage = "There was an error processing your payment. Please try again later."
)

type Handler struct {
	checkoutUC *checkout.UseCase
	qrGen      *qrgenerator.Generator
	product    Product
	logger     *slog.Logger
}

func NewHandler(checkoutUC *checkout.UseCase, qrGen *qrgenerator.Generator, product Product, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		checkoutUC: checkoutUC,
		qrGen:      qrGen,
		product:    product,
		logger:     logger,
	}
}

func (h *Handler) HandleLanding(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "landing.html", h.product)
}

// HandlePay starts payment when the form carries the pay marker; any other
// POST just shows the landing page.
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has(payField) {
		h.HandleLanding(w, r)
		return
	}

	sessionID := SessionID(r.Context())

	inv, err := h.checkoutUC.Execute(r.Context(), sessionID)
	if err != nil {
		h.logFailure(sessionID, err)
		h.render(w, http.StatusBadGateway, "error.html", errorPage{Message: genericErrorMessage})
		return
	}

	http.Redirect(w, r, inv.CheckoutLink, http.StatusSeeOther)
}

func (h *Handler) HandleThankYou(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "thankyou.html", nil)
}

// HandleQR serves the session's checkout link as a PNG. It never creates an invoice.
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())

	inv, err := h.checkoutUC.Cached(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if inv == nil {
		http.Error(w, "no invoice for this session", http.StatusNotFound)
		return
	}

	png, err := h.qrGen.Generate(inv.CheckoutLink)
	if err != nil {
		h.logger.Error("qr generation failed", "session_id", sessionID, "error", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) logFailure(sessionID string, err error) {
	var (
		apiErr       *invoice.APIError
		transportErr *invoice.TransportError
		invalidErr   *invoice.InvalidResponseError
	)

	switch {
	case errors.As(err, &apiErr):
		h.logger.Error("btcpay invoice creation failed",
			"kind", "api_error",
			"session_id", sessionID,
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)
	case errors.As(err, &transportErr):
		h.logger.Error("btcpay invoice creation failed",
			"kind", "transport_error",
			"session_id", sessionID,
			"error", transportErr.Err,
		)
	case errors.As(err, &invalidErr):
		h.logger.Error("btcpay invoice creation failed",
			"kind", "invalid_response",
			"session_id", sessionID,
			"error", invalidErr,
		)
	default:
		h.logger.Error("checkout failed",
			"kind", "internal",
			"session_id", sessionID,
			"error", err,
		)
	}
}
