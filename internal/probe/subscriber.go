package probe

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"NetFlowScope/internal/config"
	"NetFlowScope/internal/model"
)

// Subscriber consumes packet events from a NATS subject and hands them to
// a handler, typically the engine's Enqueue.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the configured NATS server.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the subject and processes messages with handler.
// Undecodable messages are logged and skipped.
func (s *Subscriber) Start(handler func(ev *model.PacketEvent)) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var w wireEvent
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			log.Printf("Error unmarshalling packet event: %v", err)
			return
		}
		handler(fromWire(w))
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for packet events...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
