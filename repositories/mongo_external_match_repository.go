package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const externalMatchesCollection = "external_matches"

// externalMatchDocument carries ActiveKey only while the match is open or
// finalized; the unique sparse index on it is the create-if-absent guard.
type externalMatchDocument struct {
	ID          string     `bson:"_id"`
	ActiveKey   string     `bson:"active_key,omitempty"`
	PlayoffID   string     `bson:"playoff_id"`
	BracketType string     `bson:"bracket_type"`
	Round       int        `bson:"round"`
	MatchNumber int        `bson:"match_number"`
	TeamA       string     `bson:"team_a"`
	TeamB       string     `bson:"team_b"`
	Format      string     `bson:"format"`
	Status      string     `bson:"status"`
	TeamAScore  *int       `bson:"team_a_score,omitempty"`
	TeamBScore  *int       `bson:"team_b_score,omitempty"`
	FinalizedAt *time.Time `bson:"finalized_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
}

func (d externalMatchDocument) model() *models.ExternalMatch {
	return &models.ExternalMatch{
		ID: d.ID,
		Key: models.MatchKey{
			PlayoffID:          d.PlayoffID,
			BracketType:        models.BracketType(d.BracketType),
			Round:              d.Round,
			MatchNumberInRound: d.MatchNumber,
		},
		TeamA:       d.TeamA,
		TeamB:       d.TeamB,
		Format:      models.MatchFormat(d.Format),
		Status:      models.ExternalMatchStatus(d.Status),
		TeamAScore:  d.TeamAScore,
		TeamBScore:  d.TeamBScore,
		FinalizedAt: d.FinalizedAt,
		CreatedAt:   d.CreatedAt,
	}
}

func activeKey(key models.MatchKey) string {
	return fmt.Sprintf("%s|%s|%d|%d", key.PlayoffID, key.BracketType, key.Round, key.MatchNumberInRound)
}

type mongoExternalMatchRepository struct {
	coll *mongo.Collection
}

func NewMongoExternalMatchRepository(db *mongo.Database) ExternalMatchStore {
	return &mongoExternalMatchRepository{coll: db.Collection(externalMatchesCollection)}
}

// EnsureMongoIndexes creates the unique index CreateMatch relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(externalMatchesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "active_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true).SetName("external_matches_active_key"),
	})
	if err != nil {
		return fmt.Errorf("failed to create external match index: %w", err)
	}
	_, err = db.Collection(playoffsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "finished", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create playoff index: %w", err)
	}
	return nil
}

func (r *mongoExternalMatchRepository) CreateMatch(ctx context.Context, key models.MatchKey, teamA, teamB string, format models.MatchFormat) (*models.ExternalMatch, bool, error) {
	doc := externalMatchDocument{
		ID:          uuid.NewString(),
		ActiveKey:   activeKey(key),
		PlayoffID:   key.PlayoffID,
		BracketType: string(key.BracketType),
		Round:       key.Round,
		MatchNumber: key.MatchNumberInRound,
		TeamA:       teamA,
		TeamB:       teamB,
		Format:      string(format),
		Status:      string(models.ExternalMatchScheduled),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return doc.model(), true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to create external match for %+v: %w", key, err)
	}

	var existing externalMatchDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "active_key", Value: doc.ActiveKey}}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("external match for %+v vanished after conflict: %w", key, ErrExternalMatchNotFound)
		}
		return nil, false, fmt.Errorf("failed to load existing external match for %+v: %w", key, err)
	}
	em := existing.model()
	if em.TeamA != teamA || em.TeamB != teamB {
		return em, false, fmt.Errorf("%w: %s holds %s vs %s", ErrExternalMatchMismatch, em.ID, em.TeamA, em.TeamB)
	}
	return em, false, nil
}

func (r *mongoExternalMatchRepository) GetMatch(ctx context.Context, id string) (*models.ExternalMatch, error) {
	var doc externalMatchDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrExternalMatchNotFound
		}
		return nil, fmt.Errorf("failed to load external match %s: %w", id, err)
	}
	return doc.model(), nil
}

func (r *mongoExternalMatchRepository) CancelMatch(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "status", Value: string(models.ExternalMatchCanceled)}}},
			{Key: "$unset", Value: bson.D{{Key: "active_key", Value: ""}}},
		})
	if err != nil {
		return fmt.Errorf("failed to cancel external match %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrExternalMatchNotFound
	}
	return nil
}

func (r *mongoExternalMatchRepository) FinalizeMatch(ctx context.Context, id string, teamAScore, teamBScore int, at time.Time) (*models.ExternalMatch, error) {
	var doc externalMatchDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: string(models.ExternalMatchScheduled)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(models.ExternalMatchFinalized)},
			{Key: "team_a_score", Value: teamAScore},
			{Key: "team_b_score", Value: teamBScore},
			{Key: "finalized_at", Value: at},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := r.GetMatch(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrExternalMatchClosed
		}
		return nil, fmt.Errorf("failed to finalize external match %s: %w", id, err)
	}
	return doc.model(), nil
}
