package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"NetFlowScope/internal/capture"
	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
	"NetFlowScope/internal/probe"
)

func main() {
	iface := flag.String("iface", "", "Interface to capture packets from (required).")
	natsURL := flag.String("nats", nats.DefaultURL, "URL of the NATS server.")
	subject := flag.String("subject", "nfs.packets", "NATS subject to publish packet events on.")
	bpf := flag.String("bpf", "", "Optional BPF filter expression.")
	flag.Parse()

	if *iface == "" {
		log.Println("Error: -iface flag is required.")
		flag.Usage()
		os.Exit(1)
	}
	log.Printf("Starting probe on interface: %s", *iface)

	pub, err := probe.NewPublisher(config.ProbeConfig{NATSURL: *natsURL, Subject: *subject})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	source, err := capture.NewSource(config.CaptureConfig{
		Interface:   *iface,
		Promiscuous: true,
		BPFFilter:   *bpf,
	})
	if err != nil {
		log.Fatalf("Error opening device %s: %v", *iface, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go source.Run(func(ev *model.PacketEvent) bool {
		if err := pub.Publish(ev); err != nil {
			log.Printf("Failed to publish packet event: %v", err)
			return false
		}
		return true
	})

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	source.Close()
}
