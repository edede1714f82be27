package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"
	"github.com/sethvargo/go-retry"

	"github.com/merakimart/backend/pkg/config"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

var (
	errKeyIDRequired  = errors.New("razorpay key id is required")
	errSecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired = errors.New("razorpay logger is required")
)

// GatewayOrder is the subset of the Razorpay order resource we consume.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
}

// Client exposes Razorpay primitives with centralized auth, retries, and error mapping.
type Client struct {
	sdk       *rzpsdk.Client
	keyID     string
	keySecret string
	currency  string
	timeout   time.Duration
	retries   uint64
	logger    *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errSecretRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}

	retries := uint64(0)
	if cfg.MaxRetries > 0 {
		retries = uint64(cfg.MaxRetries)
	}

	c := &Client{
		sdk:       rzpsdk.NewClient(keyID, keySecret),
		keyID:     keyID,
		keySecret: keySecret,
		currency:  currency,
		timeout:   cfg.CallTimeout,
		retries:   retries,
		logger:    logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public key id clients use to open the payment widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the secret used for signature verification.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// Currency reports the configured settlement currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder registers an order with the gateway for the given amount in
// paise. The receipt ties the gateway order back to our order id. The SDK call
// is retried with exponential backoff since order creation is idempotent on
// the gateway side for a given receipt.
func (c *Client) CreateOrder(ctx context.Context, receipt string, amountPaise int64) (*GatewayOrder, error) {
	if c == nil || c.sdk == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "razorpay client not initialized")
	}
	if amountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order receipt is required")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": c.currency,
		"receipt":  receipt,
	}

	var raw map[string]interface{}
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, callErr := c.sdk.Order.Create(data, nil)
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		raw = resp
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}

	order, err := parseGatewayOrder(raw)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"razorpay_order_id": order.ID,
			"amount_paise":      order.AmountPaise,
		})
		c.logger.Info(logCtx, "razorpay order created")
	}
	return order, nil
}

func parseGatewayOrder(raw map[string]interface{}) (*GatewayOrder, error) {
	id, _ := raw["id"].(string)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay order response missing id")
	}

	order := &GatewayOrder{ID: id}
	if currency, ok := raw["currency"].(string); ok {
		order.Currency = currency
	}
	if receipt, ok := raw["receipt"].(string); ok {
		order.Receipt = receipt
	}
	switch amount := raw["amount"].(type) {
	case float64:
		order.AmountPaise = int64(amount)
	case int64:
		order.AmountPaise = amount
	case int:
		order.AmountPaise = int64(amount)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("razorpay order response has unexpected amount type %T", amount))
	}
	return order, nil
}
