package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/docextract/internal/artifact"
	"github.com/joseph-ayodele/docextract/internal/common"
)

// artifacts prints the SQL artifact log for one request ID.
func main() {
	if len(os.Args) != 2 {
		log.Println("usage: artifacts <request-id>")
		log.Println("  reads ARTIFACT_DB_URL (postgres) or ARTIFACT_SQLITE_PATH (sqlite)")
		os.Exit(2)
	}
	requestID := os.Args[1]
	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		store *artifact.SQLStore
		err   error
	)
	if cfg.Artifacts.DBURL != "" {
		store, err = artifact.OpenPostgres(ctx, cfg.Artifacts.DBURL, nil)
	} else {
		store, err = artifact.OpenSQLite(ctx, cfg.Artifacts.SQLitePath, nil)
	}
	if err != nil {
		log.Fatalf("opening artifact store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("ERROR: closing artifact store: %v", err)
		}
	}()

	rows, err := store.List(ctx, requestID)
	if err != nil {
		log.Fatalf("listing artifacts: %v", err)
	}
	log.Printf("%s artifacts for %s: %d", store.Name(), requestID, len(rows))
	for _, a := range rows {
		log.Printf("- %s %-10s %-24s %d bytes", a.CreatedAt, a.Kind, a.FileName, len(a.Payload))
	}
}
