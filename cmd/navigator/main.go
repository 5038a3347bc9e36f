package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	natsadapter "github.com/samirrijal/taskpin/internal/adapters/nats"
	"github.com/samirrijal/taskpin/internal/adapters/speech"
	"github.com/samirrijal/taskpin/internal/adapters/storeclient"
	"github.com/samirrijal/taskpin/internal/core/navigation"
	"github.com/samirrijal/taskpin/internal/core/ports"
	"github.com/samirrijal/taskpin/internal/pkg/config"
	"github.com/samirrijal/taskpin/internal/pkg/logging"
	"github.com/samirrijal/taskpin/internal/pkg/telemetry"
	"github.com/samirrijal/taskpin/internal/workflows"
)

// navigator runs one headless navigation session: positions arrive on NATS,
// tasks live in the remote store, announcements are spoken and published.
func main() {
	cfg, err := config.Load("taskpin-navigator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, "taskpin-navigator")
	nav := cfg.Navigation

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	store := storeclient.New(cfg.Store.BaseURL, cfg.Store.Timeout())

	// Position stream
	subscriber, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer subscriber.Close()

	// Voice
	var synth speech.Synthesizer
	if es, err := speech.NewExecSynthesizer(nav.SpeechCommand); err != nil {
		slog.Warn("speech disabled, announcements are logged only", "error", err)
	} else {
		synth = es
	}
	voice := speech.NewSink(synth, nav.SpeechDelay(), logger.With("component", "speech"))
	defer voice.Close()

	sinks := navigation.Sinks{voice}
	var routes ports.RouteRenderer

	// Announcements and routes for remote displays
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats publisher unavailable, routes are not shared", "error", err)
	} else {
		defer publisher.Close()
		channel := publisher.Session(nav.SessionID)
		sinks = append(sinks, channel)
		routes = channel
	}

	sessionCfg := navigation.Config{
		ID:          nav.SessionID,
		ThresholdKm: nav.ThresholdKm,
		Logger:      logger,
	}

	if nav.DurableArrival {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer tc.Close()
		sessionCfg.Executor = workflows.NewExecutor(tc, cfg.Temporal.TaskQueue, nav.SessionID, nav.ArrivalTimeout())
	}

	session := navigation.NewSession(store, sinks, routes, sessionCfg)

	slog.Info("navigator starting",
		"session", nav.SessionID,
		"store", cfg.Store.BaseURL,
		"threshold_km", nav.ThresholdKm,
		"durable_arrival", nav.DurableArrival,
	)

	err = session.Run(ctx, subscriber.PositionSource(nav.SessionID))
	session.Stop()
	session.Wait()
	if err != nil {
		log.Fatalf("navigation: %v", err)
	}
	slog.Info("navigator stopped", "state", session.Snapshot().State.String())
}
