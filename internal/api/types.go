package api

// ExchangeInfoResponse is the /api/v3/exchangeInfo response.
type ExchangeInfoResponse struct {
	Timezone   string         `json:"timezone"`
	ServerTime int64          `json:"serverTime"` // ms since epoch
	RateLimits []APIRateLimit `json:"rateLimits"`
	Symbols    []APISymbol    `json:"symbols"`
}

// APIRateLimit is one rate limit rule as the exchange reports it.
type APIRateLimit struct {
	RateLimitType string `json:"rateLimitType"` // REQUEST_WEIGHT, ORDERS, RAW_REQUESTS
	Interval      string `json:"interval"`      // SECOND, MINUTE, DAY
	IntervalNum   int    `json:"intervalNum"`
	Limit         int    `json:"limit"`
}

// APISymbol is one symbol with its filter list.
type APISymbol struct {
	Symbol     string      `json:"symbol"`
	Status     string      `json:"status"`
	BaseAsset  string      `json:"baseAsset"`
	QuoteAsset string      `json:"quoteAsset"`
	Filters    []APIFilter `json:"filters"`
}

// APIFilter is one symbol filter. The populated fields depend on FilterType;
// PRICE_FILTER carries the price bounds, LOT_SIZE the quantity bounds.
type APIFilter struct {
	FilterType string `json:"filterType"`
	MinPrice   string `json:"minPrice,omitempty"`
	MaxPrice   string `json:"maxPrice,omitempty"`
	TickSize   string `json:"tickSize,omitempty"`
	MinQty     string `json:"minQty,omitempty"`
	MaxQty     string `json:"maxQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
}

// AccountResponse is the /api/v3/account response. CommissionRates carries
// the rates as decimal strings; the bare commission fields are basis points
// kept for older deployments that omit commissionRates.
type AccountResponse struct {
	MakerCommission int             `json:"makerCommission"`
	TakerCommission int             `json:"takerCommission"`
	CommissionRates CommissionRates `json:"commissionRates"`
	CanTrade        bool            `json:"canTrade"`
	CanWithdraw     bool            `json:"canWithdraw"`
	CanDeposit      bool            `json:"canDeposit"`
	AccountType     string          `json:"accountType"`
	Balances        []APIBalance    `json:"balances"`
	Permissions     []string        `json:"permissions"`
}

// CommissionRates holds commission rates as decimal strings.
type CommissionRates struct {
	Maker string `json:"maker"`
	Taker string `json:"taker"`
}

// APIBalance is one asset balance.
type APIBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// SystemStatusResponse is the /sapi/v1/system/status response.
// Status 0 means normal operation, 1 means maintenance.
type SystemStatusResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}
