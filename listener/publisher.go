package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// CompletionPublisher emits completion events the way the match system does.
type CompletionPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewCompletionPublisher(publisher message.Publisher, topic string) *CompletionPublisher {
	if topic == "" {
		topic = DefaultCompletionTopic
	}
	return &CompletionPublisher{publisher: publisher, topic: topic}
}

func (p *CompletionPublisher) Publish(ctx context.Context, ev models.CompletionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("external_match_id", ev.ExternalMatchID)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish completion of %s: %w", ev.ExternalMatchID, err)
	}
	return nil
}

// MatchSimulator stands in for the match system in development: it
// finalizes an external match and publishes the completion event.
type MatchSimulator struct {
	store     repositories.ExternalMatchStore
	publisher *CompletionPublisher
	logger    *slog.Logger
}

func NewMatchSimulator(store repositories.ExternalMatchStore, publisher *CompletionPublisher, logger *slog.Logger) *MatchSimulator {
	return &MatchSimulator{store: store, publisher: publisher, logger: logger}
}

func (s *MatchSimulator) Finalize(ctx context.Context, externalMatchID string, teamAScore, teamBScore int) (*models.ExternalMatch, error) {
	em, err := s.store.FinalizeMatch(ctx, externalMatchID, teamAScore, teamBScore, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	ev, ok := models.CompletionEventOf(em)
	if !ok {
		return nil, fmt.Errorf("external match %s was not finalized", em.ID)
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// The match is final in the store; reconcile will pick it up.
		s.logger.Error("failed to publish completion event",
			slog.String("external_match_id", em.ID),
			slog.Any("error", err))
		return em, err
	}
	s.logger.Info("external match finalized",
		slog.String("external_match_id", em.ID),
		slog.Int("team_a_score", teamAScore),
		slog.Int("team_b_score", teamBScore))
	return em, nil
}
