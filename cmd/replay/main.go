package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/taskpin/internal/adapters/nats"
	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/pkg/config"
	"github.com/samirrijal/taskpin/internal/pkg/csvgeo"
	"github.com/samirrijal/taskpin/internal/pkg/logging"
)

// replay publishes a recorded CSV track onto a navigation session's position
// subject, driving a headless navigator without a real device.
func main() {
	cfg, err := config.Load("taskpin-replay")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "taskpin-replay")

	session := flag.String("session", cfg.Navigation.SessionID, "navigation session to drive")
	interval := flag.Duration("interval", time.Second, "delay between points without an explicit offset")
	loop := flag.Bool("loop", false, "restart the track when it ends")
	flag.Parse()

	path := "track.csv"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	track, err := csvgeo.ReadTrack(f)
	f.Close()
	if err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}
	if len(track) == 0 {
		log.Fatalf("%s: empty track", path)
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("replaying track", "file", path, "points", len(track), "session", *session)

	for {
		if err := replay(ctx, publisher, *session, track, *interval); err != nil {
			slog.Info("replay stopped", "reason", err)
			return
		}
		if !*loop {
			slog.Info("replay complete")
			return
		}
	}
}

// replay publishes every point once. Points with an offset are published at
// that offset from the start; the rest follow the previous point by interval.
func replay(ctx context.Context, publisher *natsadapter.Publisher, session string, track []csvgeo.TrackPoint, interval time.Duration) error {
	start := time.Now()
	var last time.Duration
	for i, tp := range track {
		at := last + interval
		if i == 0 {
			at = 0
		}
		if tp.Offset > 0 {
			at = tp.Offset
		}
		last = at

		timer := time.NewTimer(time.Until(start.Add(at)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		pos := domain.Position{Location: tp.Location, Time: time.Now().UTC(), AccuracyM: tp.AccuracyM}
		if err := publisher.PublishPosition(ctx, session, pos); err != nil {
			slog.Warn("publish position", "index", i, "error", err)
			continue
		}
		slog.Debug("position published", "index", i, "location", tp.Location.String())
	}
	return nil
}
