package main

import (
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/taskpin/internal/adapters/storeclient"
	"github.com/samirrijal/taskpin/internal/pkg/config"
	"github.com/samirrijal/taskpin/internal/pkg/logging"
	"github.com/samirrijal/taskpin/internal/workflows"
)

// worker runs arrival workflows for navigators started with
// navigation.durable_arrival.
func main() {
	cfg, err := config.Load("taskpin-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, "taskpin-worker")

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.ArrivalWorkflow)
	w.RegisterActivity(&workflows.ArrivalActivities{
		Store: storeclient.New(cfg.Store.BaseURL, cfg.Store.Timeout()),
	})

	slog.Info("arrival worker started", "queue", cfg.Temporal.TaskQueue, "store", cfg.Store.BaseURL)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
