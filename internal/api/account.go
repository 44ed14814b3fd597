package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/binance-meta/internal/model"
)

// accountPath is the signed account information endpoint.
const accountPath = "/api/v3/account"

// FetchAccountInfo retrieves the account profile. The request is signed with
// the client's credentials; zero balances are left out server-side.
func (c *Client) FetchAccountInfo(ctx context.Context) (*model.AccountProfile, error) {
	query := url.Values{}
	query.Set("omitZeroBalances", "true")

	var resp AccountResponse
	if err := c.get(ctx, accountPath, query, true, &resp); err != nil {
		return nil, fmt.Errorf("get account info: %w", err)
	}

	profile, err := resp.ToModel()
	if err != nil {
		return nil, &ParseError{Endpoint: accountPath, Err: err}
	}
	return profile, nil
}
