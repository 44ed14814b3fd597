package api

import (
	"context"
	"fmt"

	"github.com/rickgao/binance-meta/internal/model"
)

// exchangeInfoPath is the trading rules endpoint.
const exchangeInfoPath = "/api/v3/exchangeInfo"

// FetchExchangeInfo retrieves the trading rules and rate limits for every
// symbol and validates them into the internal form.
func (c *Client) FetchExchangeInfo(ctx context.Context) (*model.ExchangeInfoData, error) {
	var resp ExchangeInfoResponse
	if err := c.get(ctx, exchangeInfoPath, nil, false, &resp); err != nil {
		return nil, fmt.Errorf("get exchange info: %w", err)
	}

	data, err := resp.ToModel()
	if err != nil {
		return nil, &ParseError{Endpoint: exchangeInfoPath, Err: err}
	}
	return data, nil
}
