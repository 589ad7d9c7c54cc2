package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	BTCPayURL     string
	BTCPayAPIKey  string
	BTCPayStoreID string
	BTCPayTimeout time.Duration

	Invoice            invoice.Request
	ProductDescription string

	SessionCookieName   string
	SessionTTL          time.Duration
	SessionCookieSecure bool
}

func Load() (*Config, error) {
	amount, err := decimal.NewFromString(getEnv("INVOICE_AMOUNT", "1.99"))
	if err != nil {
		return nil, fmt.Errorf("INVOICE_AMOUNT: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("BTCPAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("BTCPAY_TIMEOUT: %w", err)
	}

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}

	secure, err := strconv.ParseBool(getEnv("SESSION_COOKIE_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_COOKIE_SECURE: %w", err)
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		BTCPayURL:     getEnv("BTCPAY_URL", "https://testnet.demo.btcpayserver.org"),
		BTCPayAPIKey:  os.Getenv("BTCPAY_API_KEY"),
		BTCPayStoreID: os.Getenv("BTCPAY_STORE_ID"),
		BTCPayTimeout: timeout,
		Invoice: invoice.Request{
			Amount:      amount,
			Currency:    getEnv("INVOICE_CURRENCY", "USD"),
			ItemDesc:    getEnv("INVOICE_ITEM_DESC", "Blockchain Course"),
			RedirectURL: getEnv("INVOICE_REDIRECT_URL", "http://localhost:8080/thankyou"),
		},
		ProductDescription: getEnv("PRODUCT_DESCRIPTION",
			"Learn the fundamentals of blockchain technology with this introductory course."),
		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "checkout_session"),
		SessionTTL:          sessionTTL,
		SessionCookieSecure: secure,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BTCPayURL == "" {
		errs = append(errs, errors.New("BTCPAY_URL is required"))
	}
	if c.BTCPayAPIKey == "" {
		errs = append(errs, errors.New("BTCPAY_API_KEY is required"))
	}
	if c.BTCPayStoreID == "" {
		errs = append(errs, errors.New("BTCPAY_STORE_ID is required"))
	}
	if c.BTCPayTimeout <= 0 {
		errs = append(errs, errors.New("BTCPAY_TIMEOUT must be positive"))
	}
	if !c.Invoice.Amount.IsPositive() {
		errs = append(errs, errors.New("INVOICE_AMOUNT must be positive"))
	}
	if c.Invoice.Currency == "" {
		errs = append(errs, errors.New("INVOICE_CURRENCY is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
