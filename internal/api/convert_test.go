package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
)

const exchangeInfoFixture = `{
	"timezone": "UTC",
	"serverTime": 1692700000000,
	"rateLimits": [
		{"rateLimitType": "REQUEST_WEIGHT", "interval": "MINUTE", "intervalNum": 1, "limit": 1200},
		{"rateLimitType": "ORDERS", "interval": "SECOND", "intervalNum": 10, "limit": 50},
		{"rateLimitType": "RAW_REQUESTS", "interval": "MINUTE", "intervalNum": 5, "limit": 6100}
	],
	"symbols": [
		{
			"symbol": "BTCUSDT",
			"status": "TRADING",
			"baseAsset": "BTC",
			"quoteAsset": "USDT",
			"filters": [
				{"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "1000000.00000000", "tickSize": "0.00010000"},
				{"filterType": "LOT_SIZE", "minQty": "0.00010000", "maxQty": "9000.00000000", "stepSize": "0.00100000"},
				{"filterType": "NOTIONAL", "minNotional": "5.00000000"}
			]
		},
		{
			"symbol": "ETHUSDT",
			"status": "TRADING",
			"baseAsset": "ETH",
			"quoteAsset": "USDT",
			"filters": [
				{"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "100000.00000000", "tickSize": "0.01000000"},
				{"filterType": "LOT_SIZE", "minQty": "0.00100000", "maxQty": "90000.00000000", "stepSize": "0.00100000"}
			]
		},
		{
			"symbol": "INDEXONLY",
			"status": "BREAK",
			"baseAsset": "IDX",
			"quoteAsset": "USDT",
			"filters": [
				{"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "100.00000000", "tickSize": "0.01000000"}
			]
		}
	]
}`

// TestFetchExchangeInfo tests the exchange info endpoint and conversion.
func TestFetchExchangeInfo(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v3/exchangeInfo" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/api/v3/exchangeInfo")
			}
			w.Write([]byte(exchangeInfoFixture))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		data, err := c.FetchExchangeInfo(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if data.Timezone != "UTC" {
			t.Errorf("Timezone = %q, want %q", data.Timezone, "UTC")
		}
		if data.ServerTime != 1692700000000000 {
			t.Errorf("ServerTime = %d, want 1692700000000000", data.ServerTime)
		}

		// Filter strings must survive byte for byte.
		rule, ok := data.Symbol("BTCUSDT")
		if !ok {
			t.Fatal("BTCUSDT missing")
		}
		if rule.TickSize != "0.00010000" {
			t.Errorf("TickSize = %q, want %q", rule.TickSize, "0.00010000")
		}
		if rule.LotSize != "0.00100000" {
			t.Errorf("LotSize = %q, want %q", rule.LotSize, "0.00100000")
		}
		if rule.MinPrice != "0.01000000" {
			t.Errorf("MinPrice = %q, want %q", rule.MinPrice, "0.01000000")
		}
		if rule.Status != "TRADING" {
			t.Errorf("Status = %q, want %q", rule.Status, "TRADING")
		}
		if rule.BaseAsset != "BTC" || rule.QuoteAsset != "USDT" {
			t.Errorf("assets = %q/%q, want BTC/USDT", rule.BaseAsset, rule.QuoteAsset)
		}

		if _, ok := data.Symbol("ETHUSDT"); !ok {
			t.Error("ETHUSDT missing")
		}
		// INDEXONLY has no LOT_SIZE filter, so it carries no rule.
		if _, ok := data.Symbol("INDEXONLY"); ok {
			t.Error("INDEXONLY should be skipped")
		}
		if len(data.Symbols) != 2 {
			t.Errorf("len(Symbols) = %d, want 2", len(data.Symbols))
		}

		if len(data.RateLimits) != 3 {
			t.Fatalf("len(RateLimits) = %d, want 3", len(data.RateLimits))
		}
		weight := data.RateLimits[0]
		if weight.Bucket != "REQUEST_WEIGHT" {
			t.Errorf("Bucket = %q, want %q", weight.Bucket, "REQUEST_WEIGHT")
		}
		if weight.Interval != time.Minute {
			t.Errorf("Interval = %v, want %v", weight.Interval, time.Minute)
		}
		if weight.Limit != 1200 {
			t.Errorf("Limit = %d, want 1200", weight.Limit)
		}
	})

	t.Run("negative tick size is a parse failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"timezone": "UTC", "serverTime": 1, "rateLimits": [],
				"symbols": [{
					"symbol": "BADUSDT", "status": "TRADING",
					"filters": [
						{"filterType": "PRICE_FILTER", "minPrice": "0.01", "maxPrice": "10.00", "tickSize": "-0.001"},
						{"filterType": "LOT_SIZE", "minQty": "0.01", "maxQty": "10.00", "stepSize": "0.01"}
					]
				}]
			}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.FetchExchangeInfo(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError, got %T: %v", err, err)
		}
		if KindOf(err) != model.ErrorParse {
			t.Errorf("KindOf = %q, want %q", KindOf(err), model.ErrorParse)
		}
	})

	t.Run("min above max is a parse failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"timezone": "UTC", "serverTime": 1, "rateLimits": [],
				"symbols": [{
					"symbol": "BADUSDT", "status": "TRADING",
					"filters": [
						{"filterType": "PRICE_FILTER", "minPrice": "10.00", "maxPrice": "0.01", "tickSize": "0.001"},
						{"filterType": "LOT_SIZE", "minQty": "0.01", "maxQty": "10.00", "stepSize": "0.01"}
					]
				}]
			}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.FetchExchangeInfo(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError, got %T: %v", err, err)
		}
	})

	t.Run("invalid JSON is a parse failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not valid json`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.FetchExchangeInfo(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError, got %T: %v", err, err)
		}
	})
}

// TestAPIRateLimitToRule tests interval conversion.
func TestAPIRateLimitToRule(t *testing.T) {
	tests := []struct {
		name    string
		limit   APIRateLimit
		want    model.RateLimitRule
		wantErr bool
	}{
		{
			name:  "one minute weight",
			limit: APIRateLimit{RateLimitType: "REQUEST_WEIGHT", Interval: "MINUTE", IntervalNum: 1, Limit: 1200},
			want:  model.RateLimitRule{Bucket: "REQUEST_WEIGHT", Interval: time.Minute, Limit: 1200},
		},
		{
			name:  "ten second orders",
			limit: APIRateLimit{RateLimitType: "ORDERS", Interval: "SECOND", IntervalNum: 10, Limit: 50},
			want:  model.RateLimitRule{Bucket: "ORDERS", Interval: 10 * time.Second, Limit: 50},
		},
		{
			name:  "daily orders",
			limit: APIRateLimit{RateLimitType: "ORDERS", Interval: "DAY", IntervalNum: 1, Limit: 160000},
			want:  model.RateLimitRule{Bucket: "ORDERS", Interval: 24 * time.Hour, Limit: 160000},
		},
		{
			name:    "unknown interval",
			limit:   APIRateLimit{RateLimitType: "REQUEST_WEIGHT", Interval: "FORTNIGHT", IntervalNum: 1, Limit: 10},
			wantErr: true,
		},
		{
			name:    "zero limit",
			limit:   APIRateLimit{RateLimitType: "REQUEST_WEIGHT", Interval: "MINUTE", IntervalNum: 1, Limit: 0},
			wantErr: true,
		},
		{
			name:    "zero interval num",
			limit:   APIRateLimit{RateLimitType: "REQUEST_WEIGHT", Interval: "MINUTE", IntervalNum: 0, Limit: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.limit.ToRule()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToRule() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestFetchAccountInfo tests the signed account endpoint and conversion.
func TestFetchAccountInfo(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		creds, _ := testCredentials(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v3/account" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/api/v3/account")
			}
			if r.URL.Query().Get("omitZeroBalances") != "true" {
				t.Error("omitZeroBalances parameter missing")
			}
			if r.Header.Get("X-MBX-APIKEY") == "" {
				t.Error("X-MBX-APIKEY header missing")
			}
			w.Write([]byte(`{
				"makerCommission": 15,
				"takerCommission": 15,
				"commissionRates": {"maker": "0.00150000", "taker": "0.00150000"},
				"canTrade": true,
				"canWithdraw": true,
				"canDeposit": false,
				"accountType": "SPOT",
				"balances": [
					{"asset": "BTC", "free": "0.50000000", "locked": "0.10000000"},
					{"asset": "USDT", "free": "1200.00000000", "locked": "0.00000000"}
				],
				"permissions": ["SPOT", "MARGIN"]
			}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithCredentials(creds))
		profile, err := c.FetchAccountInfo(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if profile.MakerCommission != "0.00150000" {
			t.Errorf("MakerCommission = %q, want %q", profile.MakerCommission, "0.00150000")
		}
		if !profile.CanTrade {
			t.Error("CanTrade = false, want true")
		}
		if profile.CanDeposit {
			t.Error("CanDeposit = true, want false")
		}
		if len(profile.Permissions) != 2 || profile.Permissions[0] != "SPOT" {
			t.Errorf("Permissions = %v, want [SPOT MARGIN]", profile.Permissions)
		}

		btc, ok := profile.Balances["BTC"]
		if !ok {
			t.Fatal("BTC balance missing")
		}
		if btc.Free != "0.50000000" {
			t.Errorf("BTC Free = %q, want %q", btc.Free, "0.50000000")
		}
		if btc.Locked != "0.10000000" {
			t.Errorf("BTC Locked = %q, want %q", btc.Locked, "0.10000000")
		}
	})

	t.Run("falls back to basis point commissions", func(t *testing.T) {
		creds, _ := testCredentials(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"makerCommission": 15,
				"takerCommission": 10,
				"canTrade": true,
				"balances": [],
				"permissions": ["SPOT"]
			}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithCredentials(creds))
		profile, err := c.FetchAccountInfo(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if profile.MakerCommission != "0.00150000" {
			t.Errorf("MakerCommission = %q, want %q", profile.MakerCommission, "0.00150000")
		}
		if profile.TakerCommission != "0.00100000" {
			t.Errorf("TakerCommission = %q, want %q", profile.TakerCommission, "0.00100000")
		}
	})

	t.Run("negative balance is a parse failure", func(t *testing.T) {
		creds, _ := testCredentials(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"makerCommission": 15,
				"takerCommission": 15,
				"balances": [{"asset": "BTC", "free": "-0.50000000", "locked": "0.00000000"}],
				"permissions": ["SPOT"]
			}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithCredentials(creds))
		_, err := c.FetchAccountInfo(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError, got %T: %v", err, err)
		}
		if KindOf(err) != model.ErrorParse {
			t.Errorf("KindOf = %q, want %q", KindOf(err), model.ErrorParse)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		c := NewClient("http://localhost:1")
		_, err := c.FetchAccountInfo(context.Background())
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials", err)
		}
	})
}

// TestFetchSystemStatus tests the system status endpoint and conversion.
func TestFetchSystemStatus(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/sapi/v1/system/status" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/sapi/v1/system/status")
			}
			w.Write([]byte(`{"status": 0, "msg": "normal"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		status, err := c.FetchSystemStatus(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Status != model.StatusNormal {
			t.Errorf("Status = %q, want %q", status.Status, model.StatusNormal)
		}
		if status.Message != "normal" {
			t.Errorf("Message = %q, want %q", status.Message, "normal")
		}
	})

	t.Run("maintenance", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": 1, "msg": "system maintenance"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		status, err := c.FetchSystemStatus(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Status != model.StatusMaintenance {
			t.Errorf("Status = %q, want %q", status.Status, model.StatusMaintenance)
		}
	})

	t.Run("unknown status code is a parse failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": 7}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.FetchSystemStatus(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError, got %T: %v", err, err)
		}
	})
}

// TestBpsToRate tests basis point conversion.
func TestBpsToRate(t *testing.T) {
	tests := []struct {
		bps  int
		want string
	}{
		{15, "0.00150000"},
		{10, "0.00100000"},
		{0, "0.00000000"},
		{100, "0.01000000"},
	}

	for _, tt := range tests {
		if got := bpsToRate(tt.bps); got != tt.want {
			t.Errorf("bpsToRate(%d) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}
