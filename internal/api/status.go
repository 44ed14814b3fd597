package api

import (
	"context"
	"fmt"

	"github.com/rickgao/binance-meta/internal/model"
)

// systemStatusPath is the exchange maintenance status endpoint.
const systemStatusPath = "/sapi/v1/system/status"

// FetchSystemStatus retrieves whether the exchange is up or in maintenance.
func (c *Client) FetchSystemStatus(ctx context.Context) (*model.SystemStatusData, error) {
	var resp SystemStatusResponse
	if err := c.get(ctx, systemStatusPath, nil, false, &resp); err != nil {
		return nil, fmt.Errorf("get system status: %w", err)
	}

	data, err := resp.ToModel()
	if err != nil {
		return nil, &ParseError{Endpoint: systemStatusPath, Err: err}
	}
	return data, nil
}
