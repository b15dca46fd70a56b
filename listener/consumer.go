package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const DefaultCompletionTopic = "playoff.match.finalized"

// CompletionHandler is the part of the status service the consumer drives.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, ev models.CompletionEvent) error
	Reconcile(ctx context.Context) (int, error)
}

// StatusAdapter exposes services.StatusService as a CompletionHandler.
type StatusAdapter struct {
	Status services.StatusService
}

func (a StatusAdapter) HandleCompletion(ctx context.Context, ev models.CompletionEvent) error {
	_, err := a.Status.HandleCompletion(ctx, ev)
	return err
}

func (a StatusAdapter) Reconcile(ctx context.Context) (int, error) {
	return a.Status.Reconcile(ctx)
}

// Consumer subscribes to completion events and feeds them into the bracket.
// Events that can never apply are acked and dropped; anything else is
// returned to the router so the message is retried and then nacked.
type Consumer struct {
	router  *message.Router
	handler CompletionHandler
	logger  *slog.Logger
	topic   string
}

type ConsumerConfig struct {
	Topic      string
	MaxRetries int
}

func NewConsumer(cfg ConsumerConfig, subscriber message.Subscriber, handler CompletionHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultCompletionTopic
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
	)

	c := &Consumer{router: router, handler: handler, logger: logger, topic: cfg.Topic}
	router.AddNoPublisherHandler("playoff.completion", cfg.Topic, subscriber, c.handle)
	return c, nil
}

func (c *Consumer) handle(msg *message.Message) error {
	var ev models.CompletionEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error("dropping malformed completion event",
			slog.String("message_id", msg.UUID),
			slog.Any("error", err))
		return nil
	}

	err := c.handler.HandleCompletion(msg.Context(), ev)
	switch {
	case err == nil:
		c.logger.Debug("completion event applied",
			slog.String("message_id", msg.UUID),
			slog.String("external_match_id", ev.ExternalMatchID))
		return nil
	case services.IsIgnorable(err):
		c.logger.Warn("completion event ignored",
			slog.String("message_id", msg.UUID),
			slog.String("external_match_id", ev.ExternalMatchID),
			slog.Any("error", err))
		return nil
	}
	c.logger.Error("completion event failed",
		slog.String("message_id", msg.UUID),
		slog.String("external_match_id", ev.ExternalMatchID),
		slog.Any("error", err))
	return err
}

// Run blocks until ctx is cancelled. It reconciles once the router is up so
// that events published while the engine was down are not lost.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		select {
		case <-c.router.Running():
		case <-ctx.Done():
			return
		}
		c.Reconcile(ctx)
	}()
	c.logger.Info("completion consumer starting", slog.String("topic", c.topic))
	return c.router.Run(ctx)
}

// Reconcile replays finalized matches the bracket has not recorded.
func (c *Consumer) Reconcile(ctx context.Context) {
	applied, err := c.handler.Reconcile(ctx)
	if err != nil {
		c.logger.Error("reconcile failed", slog.Int("applied", applied), slog.Any("error", err))
		return
	}
	if applied > 0 {
		c.logger.Info("reconcile applied missed results", slog.Int("applied", applied))
	}
}

func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

func (c *Consumer) Close() error {
	return c.router.Close()
}
