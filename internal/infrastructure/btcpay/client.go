package btcpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
)

const (
	DefaultTimeout = 30 * time.Second
	amountDecimals = 2
	maxBodyBytes   = 1 << 20
)

type Config struct {
	BaseURL string
	APIKey  string
	StoreID string
	// Timeout bounds the whole exchange. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport. Its Timeout is replaced when zero.
	HTTPClient *http.Client
}

// Client talks to the BTCPay Server Greenfield API.
type Client struct {
	baseURL    string
	apiKey     string
	storeID    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		c := *httpClient
		c.Timeout = timeout
		httpClient = &c
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		storeID:    cfg.StoreID,
		httpClient: httpClient,
	}
}

type createInvoiceRequest struct {
	Amount   string          `json:"amount"`
	Currency string          `json:"currency"`
	Metadata invoiceMetadata `json:"metadata"`
	Checkout checkoutOptions `json:"checkout"`
}

type invoiceMetadata struct {
	ItemDesc string `json:"itemDesc"`
}

type checkoutOptions struct {
	RedirectURL string `json:"redirectURL"`
}

type invoiceResponse struct {
	ID           string `json:"id"`
	CheckoutLink string `json:"checkoutLink"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) invoicesURL() string {
	return c.baseURL + "/api/v1/stores/" + c.storeID + "/invoices"
}

// CreateInvoice makes exactly one POST to the store's invoices endpoint.
func (c *Client) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	payload, err := json.Marshal(createInvoiceRequest{
		Amount:   req.Amount.StringFixed(amountDecimals),
		Currency: req.Currency,
		Metadata: invoiceMetadata{ItemDesc: req.ItemDesc},
		Checkout: checkoutOptions{RedirectURL: req.RedirectURL},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invoicesURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build invoice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "token "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &invoice.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &invoice.TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &invoice.APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	return parseInvoice(body)
}

func errorMessage(body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return errResp.Message
	}
	return string(body)
}

func parseInvoice(body []byte) (*invoice.Invoice, error) {
	var parsed invoiceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &invoice.InvalidResponseError{Reason: "malformed json", Err: err}
	}
	if parsed.CheckoutLink == "" {
		return nil, &invoice.InvalidResponseError{Reason: "invoice created but no checkout link received"}
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &invoice.InvalidResponseError{Reason: "malformed json", Err: err}
	}

	return &invoice.Invoice{
		ID:           parsed.ID,
		CheckoutLink: parsed.CheckoutLink,
		Fields:       fields,
	}, nil
}
