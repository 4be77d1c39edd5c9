// Package main dumps the popularity ledger and license index for inspection.
//
// Usage:
//
//	DATA_PATH=~/beatvault go run ./cmd/dbinspect
//	DATA_PATH=~/beatvault STORE_BACKEND=sqlite go run ./cmd/dbinspect -top 25
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/domain"
	"github.com/beatvault/beatvault-server/internal/service"
	"github.com/beatvault/beatvault-server/internal/store"
	"github.com/beatvault/beatvault-server/internal/store/sqlite"
)

var top = flag.Int("top", 10, "Number of ranked beats to print")

func main() {
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer ledger.Close()

	ctx := context.Background()

	fmt.Println("=== Ledger Inspection ===")
	fmt.Printf("Backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("Path:    %s\n", cfg.LedgerPath())
	fmt.Println()

	ranked, err := service.NewLedgerService(ledger, nil, nil, nil).TopN(ctx, *top)
	if err != nil {
		log.Fatalf("Failed to rank beats: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tASSET\tTITLE\tSCORE\tLICENSES\tBONUS\tBASE\tTOP\tREVENUE\tLAST LICENSED")
	for i, rec := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%s\n",
			i+1, rec.AssetID, rec.AssetTitle, rec.PopularityScore, rec.TotalLicenses,
			rec.TierBreakdown[domain.TierBonus], rec.TierBreakdown[domain.TierBase], rec.TierBreakdown[domain.TierTop],
			rec.TotalRevenue, rec.LastLicensedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()

	assets, licenses, revenue := 0, 0, 0.0
	for rec, err := range ledger.ListPopularity(ctx) {
		if err != nil {
			log.Fatalf("Error reading popularity records: %v", err)
		}
		assets++
		revenue += rec.TotalRevenue
	}
	for _, err := range ledger.ListLicenses(ctx) {
		if err != nil {
			log.Fatalf("Error reading license index: %v", err)
		}
		licenses++
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Beats with licenses: %d\n", assets)
	fmt.Printf("Licenses indexed:    %d\n", licenses)
	fmt.Printf("Total revenue:       %.2f\n", revenue)
}

func openLedger(cfg *config.Config) (store.LedgerStore, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		return sqlite.Open(cfg.LedgerPath(), nil)
	}
	return store.OpenReadOnly(cfg.LedgerPath(), nil)
}
