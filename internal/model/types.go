package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Resource Kinds
// -----------------------------------------------------------------------------

// ResourceKind identifies one polled metadata resource. Each kind has its own
// payload schema and its own poll cadence.
type ResourceKind string

const (
	KindExchangeInfo ResourceKind = "exchange_info"
	KindAccountInfo  ResourceKind = "account_info"
	KindSystemStatus ResourceKind = "system_status"
)

// AllKinds returns every resource kind in a fixed order.
func AllKinds() []ResourceKind {
	return []ResourceKind{KindExchangeInfo, KindAccountInfo, KindSystemStatus}
}

// Valid reports whether k is a known resource kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindExchangeInfo, KindAccountInfo, KindSystemStatus:
		return true
	}
	return false
}

// ParseKind converts a string to a ResourceKind.
func ParseKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// -----------------------------------------------------------------------------
// Poll Attempts
// -----------------------------------------------------------------------------

// Outcome marks a poll attempt as succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ErrorKind classifies a failed poll attempt.
type ErrorKind string

const (
	// ErrorNone is the zero value, used on success snapshots.
	ErrorNone ErrorKind = ""

	// ErrorTransport covers network failures, timeouts, and HTTP error statuses.
	ErrorTransport ErrorKind = "transport"

	// ErrorParse covers responses that did not match the expected schema.
	ErrorParse ErrorKind = "parse"
)

// Payload is the parsed response body for one resource kind. Exactly one
// concrete payload type exists per kind.
type Payload interface {
	PayloadKind() ResourceKind
}

// Snapshot is the immutable outcome of a single poll attempt. Created once by
// the poller, consumed by the journal and the state store, never mutated.
type Snapshot struct {
	Kind      ResourceKind
	AttemptID uuid.UUID
	Sequence  uint64 // Strictly increasing per kind, consumed by every attempt
	FetchedAt int64  // Attempt time (µs since epoch)
	Outcome   Outcome
	ErrKind   ErrorKind // Set when Outcome == OutcomeFailure
	Payload   Payload   // Nil on failure
}

// LogEntry is the durable journal record for one snapshot. WrittenAt is the
// journal write time, which may trail FetchedAt.
type LogEntry struct {
	Snapshot
	WrittenAt int64 // µs since epoch
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// -----------------------------------------------------------------------------
// ExchangeInfo
// -----------------------------------------------------------------------------

// RateLimitRule is one limit bucket the exchange declares for itself.
type RateLimitRule struct {
	Bucket   string        `json:"bucket"` // e.g. "REQUEST_WEIGHT", "RAW_REQUESTS"
	Interval time.Duration `json:"interval_ns"`
	Limit    int           `json:"limit"`
}

// SymbolRule carries the trading filters for one symbol. TickSize is the
// price increment, LotSize the quantity increment. All bounds are positive
// decimals with min <= max; validation happens at the API boundary.
type SymbolRule struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"` // TRADING, BREAK, HALT, ...
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	TickSize   string `json:"tick_size"`
	LotSize    string `json:"lot_size"`
	MinPrice   string `json:"min_price"`
	MaxPrice   string `json:"max_price"`
	MinQty     string `json:"min_qty"`
	MaxQty     string `json:"max_qty"`
}

// ExchangeInfoData is the parsed /api/v3/exchangeInfo payload.
type ExchangeInfoData struct {
	Timezone   string          `json:"timezone"`
	ServerTime int64           `json:"server_time"` // µs since epoch
	RateLimits []RateLimitRule `json:"rate_limits"`
	Symbols    []SymbolRule    `json:"symbols"`
}

func (*ExchangeInfoData) PayloadKind() ResourceKind { return KindExchangeInfo }

// Symbol returns the rule for one symbol, if present.
func (d *ExchangeInfoData) Symbol(sym string) (SymbolRule, bool) {
	for _, s := range d.Symbols {
		if s.Symbol == sym {
			return s, true
		}
	}
	return SymbolRule{}, false
}

// -----------------------------------------------------------------------------
// AccountInfo
// -----------------------------------------------------------------------------

// Balance holds the free and locked amounts for one asset.
type Balance struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountProfile is the parsed /api/v3/account payload.
type AccountProfile struct {
	MakerCommission string             `json:"maker_commission"`
	TakerCommission string             `json:"taker_commission"`
	CanTrade        bool               `json:"can_trade"`
	CanWithdraw     bool               `json:"can_withdraw"`
	CanDeposit      bool               `json:"can_deposit"`
	Permissions     []string           `json:"permissions"`
	Balances        map[string]Balance `json:"balances"`
}

func (*AccountProfile) PayloadKind() ResourceKind { return KindAccountInfo }

// -----------------------------------------------------------------------------
// SystemStatus
// -----------------------------------------------------------------------------

// SystemStatusValue is the exchange's operational status.
type SystemStatusValue string

const (
	StatusNormal      SystemStatusValue = "normal"
	StatusMaintenance SystemStatusValue = "maintenance"
)

// SystemStatusData is the parsed /sapi/v1/system/status payload.
type SystemStatusData struct {
	Status  SystemStatusValue `json:"status"`
	Message string            `json:"message"`
}

func (*SystemStatusData) PayloadKind() ResourceKind { return KindSystemStatus }
