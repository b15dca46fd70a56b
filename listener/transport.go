package listener

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
)

const (
	TransportNATS      = "nats"
	TransportGoChannel = "gochannel"
)

type TransportConfig struct {
	Kind    string
	NATSURL string
	// OnReconnect fires after the NATS connection of the subscriber comes back.
	OnReconnect func()
}

// Transport is the publisher/subscriber pair carrying completion events.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

func (t *Transport) Close() error {
	var firstErr error
	if err := t.Subscriber.Close(); err != nil {
		firstErr = err
	}
	// gochannel uses one value for both sides.
	if any(t.Publisher) != any(t.Subscriber) {
		if err := t.Publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewTransport(cfg TransportConfig, logger *slog.Logger) (*Transport, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Kind {
	case TransportGoChannel, "":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return &Transport{Publisher: ch, Subscriber: ch}, nil

	case TransportNATS:
		marshaler := &nats.NATSMarshaler{}
		publisher, err := nats.NewPublisher(nats.PublisherConfig{
			URL:       cfg.NATSURL,
			Marshaler: marshaler,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: nats.JetStreamConfig{Disabled: true},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}

		natsOpts := []nc.Option{
			nc.RetryOnFailedConnect(true),
			nc.MaxReconnects(-1),
			nc.ReconnectWait(2 * time.Second),
			nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
				logger.Warn("NATS subscriber disconnected", slog.Any("error", err))
			}),
		}
		if cfg.OnReconnect != nil {
			natsOpts = append(natsOpts, nc.ReconnectHandler(func(conn *nc.Conn) {
				logger.Info("NATS subscriber reconnected", slog.String("url", conn.ConnectedUrl()))
				cfg.OnReconnect()
			}))
		}
		subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{
			URL:              cfg.NATSURL,
			QueueGroupPrefix: "playoff-engine",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			Unmarshaler:      marshaler,
			NatsOptions:      natsOpts,
			JetStream:        nats.JetStreamConfig{Disabled: true},
		}, wmLogger)
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
		}
		return &Transport{Publisher: publisher, Subscriber: subscriber}, nil
	}
	return nil, fmt.Errorf("unknown event transport %q", cfg.Kind)
}
