package main

import (
	"context"
	"flag"
	"log"
	"os"

	"backend-trekko/internal/config"
	"backend-trekko/internal/db"
	"backend-trekko/internal/registry"
)

// Loads a CADASTUR CSV export into the guide registry. Run after each
// ministry data refresh:
//
//	importer -file cadastur.csv
func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	file := fs.String("file", "", "path to the CADASTUR CSV export")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		log.Printf("missing -file")
		fs.Usage()
		return 2
	}

	cfg := config.Load()

	pool, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
		return 1
	}
	defer pool.Close()

	rdb := db.ConnectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Printf("open %s: %v", *file, err)
		return 1
	}
	defer f.Close()

	svc := registry.NewService(pool, rdb)
	report, err := svc.ImportBatch(context.Background(), f)
	if err != nil {
		log.Printf("import failed: %v", err)
		return 1
	}

	log.Printf("import done: read=%d imported=%d skipped=%d errored=%d",
		report.Read, report.Imported, report.Skipped, report.Errored)
	return 0
}
