// logdump prints the contents of a poll journal, one resource kind at a
// time, in append order. It reads the file backend in -dir, or whichever
// backend a metad config file names when -config is given.
// Usage: go run ./cmd/logdump -dir output [-kind system_status] [-last] [-verbose]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/binance-meta/internal/config"
	"github.com/rickgao/binance-meta/internal/database"
	"github.com/rickgao/binance-meta/internal/journal"
	"github.com/rickgao/binance-meta/internal/model"
)

func main() {
	dir := flag.String("dir", "output", "journal directory (file backend)")
	configPath := flag.String("config", "", "read the journal backend from a metad config file instead")
	kindFlag := flag.String("kind", "", "dump a single kind (exchange_info, account_info, system_status)")
	last := flag.Bool("last", false, "print only the newest entry per kind")
	verbose := flag.Bool("verbose", false, "print full payload JSON")
	flag.Parse()

	// .env feeds ${VAR} expansion when reading a config file.
	_ = godotenv.Load()

	kinds := model.AllKinds()
	if *kindFlag != "" {
		kind, err := model.ParseKind(*kindFlag)
		if err != nil {
			log.Fatalf("bad -kind: %v", err)
		}
		kinds = []model.ResourceKind{kind}
	}

	ctx := context.Background()

	jnl, cleanup, err := openJournal(ctx, *configPath, *dir)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer cleanup()

	for _, kind := range kinds {
		fmt.Printf("=== %s ===\n", kind)

		if *last {
			entry, ok, err := jnl.LastEntry(ctx, kind)
			if err != nil {
				log.Fatalf("read %s: %v", kind, err)
			}
			if !ok {
				fmt.Println("(empty)")
				continue
			}
			printEntry(*entry, *verbose)
			continue
		}

		count := 0
		err := jnl.ReadKind(ctx, kind, func(entry model.LogEntry) error {
			printEntry(entry, *verbose)
			count++
			return nil
		})
		if err != nil {
			log.Fatalf("read %s: %v", kind, err)
		}
		if count == 0 {
			fmt.Println("(empty)")
		}
	}
}

// openJournal opens the file backend in dir, or the backend named by the
// config file when one is given. The cleanup closes the journal and any
// database pool behind it.
func openJournal(ctx context.Context, configPath, dir string) (journal.Journal, func(), error) {
	if configPath == "" {
		jnl, err := journal.NewFile(dir, false, nil)
		if err != nil {
			return nil, nil, err
		}
		return jnl, func() { jnl.Close() }, nil
	}

	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Journal.Backend {
	case "file":
		jnl, err := journal.NewFile(cfg.Journal.Dir, false, nil)
		if err != nil {
			return nil, nil, err
		}
		return jnl, func() { jnl.Close() }, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Journal.Postgres)
		if err != nil {
			return nil, nil, err
		}
		jnl, err := journal.NewPostgres(ctx, pool, nil)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return jnl, func() { jnl.Close(); pool.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}
}

func printEntry(entry model.LogEntry, verbose bool) {
	fetched := time.UnixMicro(entry.FetchedAt).UTC().Format(time.RFC3339)

	if entry.Outcome == model.OutcomeFailure {
		fmt.Printf("seq=%d %s outcome=failure error=%s attempt=%s\n",
			entry.Sequence, fetched, entry.ErrKind, entry.AttemptID)
		return
	}

	fmt.Printf("seq=%d %s outcome=success %s attempt=%s\n",
		entry.Sequence, fetched, payloadSummary(entry.Payload), entry.AttemptID)

	if verbose && entry.Payload != nil {
		data, err := json.MarshalIndent(entry.Payload, "  ", "  ")
		if err != nil {
			log.Fatalf("marshal payload: %v", err)
		}
		fmt.Printf("  %s\n", data)
	}
}

func payloadSummary(payload model.Payload) string {
	switch p := payload.(type) {
	case *model.ExchangeInfoData:
		return fmt.Sprintf("symbols=%d rate_limits=%d", len(p.Symbols), len(p.RateLimits))
	case *model.AccountProfile:
		return fmt.Sprintf("balances=%d can_trade=%v", len(p.Balances), p.CanTrade)
	case *model.SystemStatusData:
		return fmt.Sprintf("status=%s", p.Status)
	default:
		return "payload=none"
	}
}
