package wallet

import (
	"context"
	"fmt"
	"strconv"

	"resty.dev/v3"
)

// HTTPAwarder posts awards to an external gamification service.
type HTTPAwarder struct {
	client *resty.Client
}

// NewHTTPAwarder creates an awarder targeting cfg.RemoteURL.
func NewHTTPAwarder(cfg Config) *HTTPAwarder {
	client := resty.New()
	client.SetBaseURL(cfg.RemoteURL)
	client.SetHeader("Content-Type", "application/json")
	if cfg.RemoteToken != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.RemoteToken)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &HTTPAwarder{client: client}
}

// AwardPoints posts one ledger line. The ledger ID doubles as the
// idempotency key so a re-sent line is dropped by the remote side.
func (h *HTTPAwarder) AwardPoints(ctx context.Context, award Award) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "point-award-"+strconv.FormatInt(award.LedgerID, 10)).
		SetBody(award).
		Post("/points")
	if err != nil {
		return fmt.Errorf("post award: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post award: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Close releases the underlying HTTP client.
func (h *HTTPAwarder) Close() error {
	return h.client.Close()
}
