package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
)

// ToModel converts and validates an exchange info response. Filter strings
// are kept exactly as the exchange sent them; validation only parses copies.
func (r *ExchangeInfoResponse) ToModel() (*model.ExchangeInfoData, error) {
	data := &model.ExchangeInfoData{
		Timezone:   r.Timezone,
		ServerTime: r.ServerTime * 1000, // ms to µs
	}

	for _, l := range r.RateLimits {
		rule, err := l.ToRule()
		if err != nil {
			return nil, err
		}
		data.RateLimits = append(data.RateLimits, rule)
	}

	for _, s := range r.Symbols {
		rule, ok, err := s.ToRule()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		data.Symbols = append(data.Symbols, rule)
	}

	return data, nil
}

// ToRule converts one reported rate limit to a bucket rule.
func (l *APIRateLimit) ToRule() (model.RateLimitRule, error) {
	var unit time.Duration
	switch l.Interval {
	case "SECOND":
		unit = time.Second
	case "MINUTE":
		unit = time.Minute
	case "DAY":
		unit = 24 * time.Hour
	default:
		return model.RateLimitRule{}, fmt.Errorf("rate limit %s: unknown interval %q", l.RateLimitType, l.Interval)
	}

	if l.IntervalNum <= 0 {
		return model.RateLimitRule{}, fmt.Errorf("rate limit %s: interval num %d not positive", l.RateLimitType, l.IntervalNum)
	}
	if l.Limit <= 0 {
		return model.RateLimitRule{}, fmt.Errorf("rate limit %s: limit %d not positive", l.RateLimitType, l.Limit)
	}

	return model.RateLimitRule{
		Bucket:   l.RateLimitType,
		Interval: time.Duration(l.IntervalNum) * unit,
		Limit:    l.Limit,
	}, nil
}

// ToRule converts one symbol to its trading rule. Symbols carrying neither a
// price filter nor a lot size filter have no usable rule and report ok=false.
func (s *APISymbol) ToRule() (model.SymbolRule, bool, error) {
	var price, lot *APIFilter
	for i := range s.Filters {
		switch s.Filters[i].FilterType {
		case "PRICE_FILTER":
			price = &s.Filters[i]
		case "LOT_SIZE":
			lot = &s.Filters[i]
		}
	}
	if price == nil || lot == nil {
		return model.SymbolRule{}, false, nil
	}

	if err := checkBounds(price.MinPrice, price.MaxPrice, price.TickSize); err != nil {
		return model.SymbolRule{}, false, fmt.Errorf("symbol %s price filter: %w", s.Symbol, err)
	}
	if err := checkBounds(lot.MinQty, lot.MaxQty, lot.StepSize); err != nil {
		return model.SymbolRule{}, false, fmt.Errorf("symbol %s lot size: %w", s.Symbol, err)
	}

	return model.SymbolRule{
		Symbol:     s.Symbol,
		Status:     s.Status,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		TickSize:   price.TickSize,
		LotSize:    lot.StepSize,
		MinPrice:   price.MinPrice,
		MaxPrice:   price.MaxPrice,
		MinQty:     lot.MinQty,
		MaxQty:     lot.MaxQty,
	}, true, nil
}

// checkBounds validates one filter's decimal triple: all positive, min <= max.
func checkBounds(min, max, step string) error {
	minV, err := parsePositive(min)
	if err != nil {
		return fmt.Errorf("min %q: %w", min, err)
	}
	maxV, err := parsePositive(max)
	if err != nil {
		return fmt.Errorf("max %q: %w", max, err)
	}
	if _, err := parsePositive(step); err != nil {
		return fmt.Errorf("step %q: %w", step, err)
	}
	if minV > maxV {
		return fmt.Errorf("min %s above max %s", min, max)
	}
	return nil
}

// parsePositive parses a decimal string and requires it to be positive.
func parsePositive(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty decimal")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a decimal")
	}
	if v <= 0 {
		return 0, fmt.Errorf("not positive")
	}
	return v, nil
}

// parseNonNegative parses a decimal string and rejects negative values.
func parseNonNegative(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty decimal")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a decimal")
	}
	if v < 0 {
		return 0, fmt.Errorf("negative")
	}
	return v, nil
}

// ToModel converts and validates an account response. Balances must be
// non-negative; the asset list keeps the exchange's decimal strings.
func (r *AccountResponse) ToModel() (*model.AccountProfile, error) {
	maker := r.CommissionRates.Maker
	if maker == "" {
		maker = bpsToRate(r.MakerCommission)
	}
	taker := r.CommissionRates.Taker
	if taker == "" {
		taker = bpsToRate(r.TakerCommission)
	}

	if _, err := parseNonNegative(maker); err != nil {
		return nil, fmt.Errorf("maker commission %q: %w", maker, err)
	}
	if _, err := parseNonNegative(taker); err != nil {
		return nil, fmt.Errorf("taker commission %q: %w", taker, err)
	}

	balances := make(map[string]model.Balance, len(r.Balances))
	for _, b := range r.Balances {
		if b.Asset == "" {
			return nil, fmt.Errorf("balance with empty asset")
		}
		if _, err := parseNonNegative(b.Free); err != nil {
			return nil, fmt.Errorf("asset %s free %q: %w", b.Asset, b.Free, err)
		}
		if _, err := parseNonNegative(b.Locked); err != nil {
			return nil, fmt.Errorf("asset %s locked %q: %w", b.Asset, b.Locked, err)
		}
		balances[b.Asset] = model.Balance{Free: b.Free, Locked: b.Locked}
	}

	return &model.AccountProfile{
		MakerCommission: maker,
		TakerCommission: taker,
		CanTrade:        r.CanTrade,
		CanWithdraw:     r.CanWithdraw,
		CanDeposit:      r.CanDeposit,
		Permissions:     append([]string(nil), r.Permissions...),
		Balances:        balances,
	}, nil
}

// bpsToRate converts a basis point commission to a decimal rate string.
// 15 -> "0.00150000"
func bpsToRate(bps int) string {
	return strconv.FormatFloat(float64(bps)/10000, 'f', 8, 64)
}

// ToModel converts a system status response.
func (r *SystemStatusResponse) ToModel() (*model.SystemStatusData, error) {
	var status model.SystemStatusValue
	switch r.Status {
	case 0:
		status = model.StatusNormal
	case 1:
		status = model.StatusMaintenance
	default:
		return nil, fmt.Errorf("unknown system status %d", r.Status)
	}

	return &model.SystemStatusData{
		Status:  status,
		Message: r.Msg,
	}, nil
}
