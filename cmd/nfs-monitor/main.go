package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"NetFlowScope/internal/api"
	"NetFlowScope/internal/capture"
	"NetFlowScope/internal/config"
	"NetFlowScope/internal/engine"
	"NetFlowScope/internal/geo"
	"NetFlowScope/internal/model"
	"NetFlowScope/internal/probe"
	"NetFlowScope/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	eng.Start()

	sinks, store := storage.NewSinks(cfg.Storage)
	persister := storage.NewPersister(eng, sinks, store, cfg.Storage)
	persister.Start()

	var locator model.Locator
	if cfg.GeoIP.Enabled {
		l, err := geo.NewLocator(cfg.GeoIP.DatabasePath)
		if err != nil {
			log.Printf("Warning: geo lookup disabled: %v", err)
		} else {
			locator = l
			defer l.Close()
		}
	}

	// Packet sources. Live capture and the NATS probe feed can run side
	// by side; at least one must be enabled.
	var source *capture.Source
	var subscriber *probe.Subscriber

	if cfg.Capture.Enabled {
		source, err = capture.NewSource(cfg.Capture)
		if err != nil {
			log.Fatalf("Failed to start capture: %v", err)
		}
		go source.Run(eng.Enqueue)
	}

	if cfg.Probe.Enabled {
		subscriber, err = probe.NewSubscriber(cfg.Probe)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		if err := subscriber.Start(func(ev *model.PacketEvent) {
			eng.Enqueue(ev)
		}); err != nil {
			log.Fatalf("Failed to subscribe to packet events: %v", err)
		}
	}

	if source == nil && subscriber == nil {
		log.Fatalf("No packet source enabled. Enable capture or probe in %s.", *configPath)
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API, eng, store, locator)
		server.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")

	// Stop the sources first so no events arrive during teardown, then the
	// engine so its shutdown sweep finalizes live sessions, then the
	// persister so that final batch reaches storage.
	if source != nil {
		source.Close()
	}
	if subscriber != nil {
		subscriber.Close()
	}
	eng.Stop()
	persister.Stop()
	if server != nil {
		server.Stop()
	}
	log.Println("Monitor exited.")
}
