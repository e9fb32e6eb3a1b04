package probe

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

// Publisher publishes packet events to a NATS subject, letting a capture
// probe run on a different host than the engine.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a packet event and publishes it to the configured
// subject.
func (p *Publisher) Publish(ev *model.PacketEvent) error {
	data, err := json.Marshal(toWire(ev))
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
