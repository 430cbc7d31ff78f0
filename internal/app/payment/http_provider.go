package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPProvider talks to a Razorpay compatible orders API.
type HTTPProvider struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewHTTPProvider(baseURL, keyID, keySecret string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) KeyID() string {
	return p.keyID
}

type createOrderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type providerError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (p *HTTPProvider) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	payload, err := json.Marshal(createOrderBody{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return Order{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return Order{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(p.keyID, p.keySecret)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var perr providerError
		_ = json.Unmarshal(body, &perr)
		logrus.Warnf("payment provider returned %d for receipt %s: %s", resp.StatusCode, req.Receipt, perr.Error.Description)
		return Order{}, fmt.Errorf("%w: status %d %s", ErrProvider, resp.StatusCode, perr.Error.Description)
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, fmt.Errorf("%w: decode order: %v", ErrProvider, err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("%w: empty order id", ErrProvider)
	}
	if order.Amount != req.Amount {
		return Order{}, fmt.Errorf("%w: order amount %d != requested %d", ErrProvider, order.Amount, req.Amount)
	}
	return order, nil
}
