// Package main seeds a data directory with synthetic licenses.
//
// Licenses go through the same issuance path as the API, so certificates,
// the license index, the search index and the popularity ledger stay consistent.
//
// Usage:
//
//	DATA_PATH=~/beatvault go run ./cmd/seed
//	DATA_PATH=~/beatvault go run ./cmd/seed -n 500 -assets 40
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/beatvault/beatvault-server/internal/certificate"
	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/domain"
	"github.com/beatvault/beatvault-server/internal/id"
	"github.com/beatvault/beatvault-server/internal/popularity"
	"github.com/beatvault/beatvault-server/internal/search"
	"github.com/beatvault/beatvault-server/internal/service"
	"github.com/beatvault/beatvault-server/internal/store"
	"github.com/beatvault/beatvault-server/internal/store/sqlite"
	"github.com/beatvault/beatvault-server/internal/validation"
)

var (
	count  = flag.Int("n", 100, "Number of licenses to issue")
	assets = flag.Int("assets", 12, "Number of distinct beats")
)

var (
	moods   = []string{"Neon", "Rainy", "Midnight", "Golden", "Hollow", "Velvet", "Static", "Lunar"}
	nouns   = []string{"Drive", "Window", "Tapes", "Hour", "Skyline", "Echo", "Garden", "Signal"}
	artists = []string{"Midnight Tapes", "Owl City Beats", "Lo Fi Larry", "Kairo", "Slow Motion"}
)

func main() {
	flag.Parse()
	if *count <= 0 || *assets <= 0 {
		log.Fatal("-n and -assets must be positive")
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var ledger store.LedgerStore
	if cfg.Storage.Backend == config.BackendSQLite {
		ledger, err = sqlite.Open(cfg.LedgerPath(), nil)
	} else {
		ledger, err = store.New(cfg.LedgerPath(), nil)
	}
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer ledger.Close()

	documents, err := certificate.NewStorage(cfg.CertificatesPath())
	if err != nil {
		log.Fatalf("Failed to open certificate storage: %v", err)
	}

	index, err := search.NewSearchIndex(search.Options{DataPath: cfg.SearchIndexPath()})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	licenses := service.NewLicenseService(
		ledger,
		popularity.NewAggregator(ledger, domain.DefaultTierTable(), nil),
		documents,
		index,
		nil,
		validation.New(),
		service.LicenseServiceConfig{IDPrefix: cfg.License.IDPrefix, IssueTimeout: cfg.License.IssueTimeout},
		nil,
	)

	fmt.Printf("Seeding %d licenses across %d beats into %s\n", *count, *assets, cfg.Storage.DataPath)

	buyers := make([]string, max(*count/3, 1))
	for i := range buyers {
		buyers[i] = id.MustGenerate("buyer")
	}

	ctx := context.Background()
	issued, degraded := 0, 0
	for i := range *count {
		// A skewed pick gives the ranking a clear head and a long tail.
		n := min(int(rand.ExpFloat64()*float64(*assets)/3), *assets-1)

		tier := domain.TierBase
		if rand.IntN(4) == 0 {
			tier = domain.TierTop
		}

		res, err := licenses.Issue(ctx, domain.IssueRequest{
			AssetID:    fmt.Sprintf("seed-%03d", n),
			AssetTitle: moods[n%len(moods)] + " " + nouns[(n/len(moods))%len(nouns)],
			LicenseeID: buyers[rand.IntN(len(buyers))],
			ArtistName: artists[n%len(artists)],
			Tier:       tier,
		})
		if err != nil {
			log.Printf("Issue %d failed: %v", i, err)
			continue
		}
		issued++
		if res.Degraded {
			degraded++
		}
	}

	fmt.Printf("Issued %d licenses (%d degraded)\n", issued, degraded)
}
