package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/taskpin/internal/adapters/storeclient"
	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/pkg/config"
	"github.com/samirrijal/taskpin/internal/pkg/csvgeo"
	"github.com/samirrijal/taskpin/internal/pkg/logging"
)

// import bulk-creates task pins from a CSV file (title,lat,lng) through the
// task store API.
func main() {
	cfg, err := config.Load("taskpin-import")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "taskpin-import")

	concurrency := flag.Int("concurrency", 4, "parallel store requests")
	flag.Parse()

	path := "pins.csv"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	pins, err := csvgeo.ReadPins(f)
	f.Close()
	if err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}

	slog.Info("importing pins", "file", path, "count", len(pins), "store", cfg.Store.BaseURL)

	store := storeclient.New(cfg.Store.BaseURL, cfg.Store.Timeout())
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		created  atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
	)
	sem := make(chan struct{}, max(*concurrency, 1))

	for _, pin := range pins {
		wg.Add(1)
		go func(p csvgeo.Pin) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			loc := p.Location
			task, err := store.CreateTask(ctx, p.Title, &loc)
			switch {
			case errors.Is(err, domain.ErrInvalidInput):
				rejected.Add(1)
				slog.Warn("pin rejected", "title", p.Title, "error", err)
			case err != nil:
				failed.Add(1)
				slog.Error("pin not saved", "title", p.Title, "error", err)
			default:
				created.Add(1)
				slog.Debug("pin saved", "id", task.ID, "title", task.Title)
			}
		}(pin)
	}

	wg.Wait()
	slog.Info("import complete", "created", created.Load(), "rejected", rejected.Load(), "failed", failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}
