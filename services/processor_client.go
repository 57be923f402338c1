package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"
)

// ProcessorStatus is the processor's own view of one payment, returned by the
// status query endpoint.
type ProcessorStatus struct {
	PaymentID   string               `json:"payment_id"`
	Status      models.PaymentStatus `json:"status"`
	ExpiresAt   time.Time            `json:"expires_at"`
	ConfirmedAt *time.Time           `json:"confirmed_at"`
	TxHash      string               `json:"tx_hash,omitempty"`
}

// StatusQuerier is the read-only status query consumed by the reconciler and
// the poll loop.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, paymentID string) (*ProcessorStatus, error)
}

// ProcessorClient talks to the remote payment processor API. It performs pure
// reads; local state is mutated only by the reconciler.
type ProcessorClient struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
}

func NewProcessorClient(baseURL string, tokens *TokenSource) *ProcessorClient {
	return &ProcessorClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// QueryStatus fetches {status, expires_at, confirmed_at} for one payment.
// Network failures and 5xx responses surface as ErrUnavailable so callers can
// retry on their own schedule; a rejected token is refreshed and retried once.
func (c *ProcessorClient) QueryStatus(ctx context.Context, paymentID string) (*ProcessorStatus, error) {
	status, err := c.queryOnce(ctx, paymentID, false)
	if err != nil && errors.Is(err, apperrors.ErrUnauthorized) {
		return c.queryOnce(ctx, paymentID, true)
	}
	return status, err
}

func (c *ProcessorClient) queryOnce(ctx context.Context, paymentID string, retried bool) (*ProcessorStatus, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, err)
	}

	url := fmt.Sprintf("%s/api/v1/payments/%s/status", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// parsed below
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.Wrap(apperrors.ErrNotFound, fmt.Errorf("payment %s", paymentID))
	case resp.StatusCode == http.StatusUnauthorized && !retried:
		c.tokens.Invalidate(token)
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, fmt.Errorf("processor rejected token"))
	default:
		return nil, apperrors.Wrap(apperrors.ErrUnavailable,
			fmt.Errorf("processor status %d: %s", resp.StatusCode, string(body)))
	}

	var status ProcessorStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status response: %w", err)
	}
	return &status, nil
}

var _ StatusQuerier = (*ProcessorClient)(nil)
