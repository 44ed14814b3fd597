// apitest exercises the Binance REST endpoints the poller depends on.
// Usage: go run ./cmd/apitest [-base https://api.binance.com]
//
// Optional environment variables for the signed account endpoint:
//
//	BINANCE_API_KEY          - API key (X-MBX-APIKEY header)
//	BINANCE_PRIVATE_KEY_PATH - Path to your Ed25519 private key PEM file
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rickgao/binance-meta/internal/api"
	"github.com/rickgao/binance-meta/internal/auth"
)

func main() {
	baseURL := flag.String("base", "https://api.binance.com", "REST base URL")
	flag.Parse()

	opts := []api.ClientOption{
		api.WithTimeout(30 * time.Second),
	}

	apiKey := os.Getenv("BINANCE_API_KEY")
	keyPath := os.Getenv("BINANCE_PRIVATE_KEY_PATH")
	if apiKey != "" && keyPath != "" {
		creds, err := auth.LoadCredentials(apiKey, keyPath)
		if err != nil {
			log.Fatalf("LoadCredentials failed: %v", err)
		}
		opts = append(opts, api.WithCredentials(creds))
	}

	client := api.NewClient(*baseURL, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Test 1: System Status
	fmt.Println("=== Testing FetchSystemStatus ===")
	status, err := client.FetchSystemStatus(ctx)
	if err != nil {
		log.Fatalf("FetchSystemStatus failed: %v", err)
	}
	fmt.Printf("Status: %s\n", status.Status)
	if status.Message != "" {
		fmt.Printf("Message: %s\n", status.Message)
	}

	// Test 2: Exchange Info
	fmt.Println("\n=== Testing FetchExchangeInfo ===")
	info, err := client.FetchExchangeInfo(ctx)
	if err != nil {
		log.Fatalf("FetchExchangeInfo failed: %v", err)
	}
	fmt.Printf("Timezone: %s\n", info.Timezone)
	fmt.Printf("Symbols: %d, rate limits: %d\n", len(info.Symbols), len(info.RateLimits))
	for _, rule := range info.RateLimits {
		fmt.Printf("  %s: %d per %s\n", rule.Bucket, rule.Limit, rule.Interval)
	}
	for i, sym := range info.Symbols {
		if i >= 5 {
			break
		}
		fmt.Printf("  %d. %s (%s/%s) tick=%s lot=%s status=%s\n",
			i+1, sym.Symbol, sym.BaseAsset, sym.QuoteAsset, sym.TickSize, sym.LotSize, sym.Status)
	}

	// Test 3: Account Info (signed, only with credentials)
	if apiKey != "" && keyPath != "" {
		fmt.Println("\n=== Testing FetchAccountInfo ===")
		account, err := client.FetchAccountInfo(ctx)
		if err != nil {
			log.Fatalf("FetchAccountInfo failed: %v", err)
		}
		fmt.Printf("CanTrade: %v, CanWithdraw: %v, CanDeposit: %v\n",
			account.CanTrade, account.CanWithdraw, account.CanDeposit)
		fmt.Printf("Permissions: %v\n", account.Permissions)
		fmt.Printf("Assets with balance: %d\n", len(account.Balances))
	} else {
		fmt.Println("\n=== Skipping FetchAccountInfo (no credentials in environment) ===")
	}

	fmt.Println("\n=== All API tests passed! ===")
}
