package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const playoffsCollection = "playoffs"

// playoffDocument wraps the encoded playoff so the version check can run on a
// top-level field.
type playoffDocument struct {
	ID           string    `bson:"_id"`
	TournamentID string    `bson:"tournament_id"`
	Version      int64     `bson:"version"`
	Finished     bool      `bson:"finished"`
	Payload      []byte    `bson:"payload"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type mongoPlayoffRepository struct {
	coll *mongo.Collection
}

func NewMongoPlayoffRepository(db *mongo.Database) PlayoffRepository {
	return &mongoPlayoffRepository{coll: db.Collection(playoffsCollection)}
}

func (r *mongoPlayoffRepository) toDocument(p *models.Playoff) (*playoffDocument, error) {
	payload, err := encodePlayoff(p)
	if err != nil {
		return nil, err
	}
	return &playoffDocument{
		ID:           p.ID,
		TournamentID: p.TournamentID,
		Version:      p.Version,
		Finished:     isFinished(p),
		Payload:      payload,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

func (r *mongoPlayoffRepository) Create(ctx context.Context, p *models.Playoff) error {
	p.Version = 1
	doc, err := r.toDocument(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrPlayoffExists
		}
		return fmt.Errorf("failed to insert playoff %s: %w", p.ID, err)
	}
	return nil
}

func (r *mongoPlayoffRepository) GetByID(ctx context.Context, id string) (*models.Playoff, error) {
	var doc playoffDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPlayoffNotFound
		}
		return nil, fmt.Errorf("failed to load playoff %s: %w", id, err)
	}
	return decodePlayoff(doc.Payload, doc.Version)
}

func (r *mongoPlayoffRepository) List(ctx context.Context) ([]*models.Playoff, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list playoffs: %w", err)
	}
	var docs []playoffDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read playoffs: %w", err)
	}
	out := make([]*models.Playoff, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePlayoff(doc.Payload, doc.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *mongoPlayoffRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "finished", Value: false}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active playoffs: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to read active playoffs: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *mongoPlayoffRepository) Save(ctx context.Context, p *models.Playoff, expectedVersion int64) error {
	p.Version = expectedVersion + 1
	doc, err := r.toDocument(p)
	if err != nil {
		p.Version = expectedVersion
		return err
	}
	filter := bson.D{{Key: "_id", Value: p.ID}, {Key: "version", Value: expectedVersion}}
	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		p.Version = expectedVersion
		return fmt.Errorf("failed to save playoff %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		p.Version = expectedVersion
		n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: p.ID}})
		if err != nil {
			return fmt.Errorf("failed to check playoff %s: %w", p.ID, err)
		}
		if n == 0 {
			return ErrPlayoffNotFound
		}
		return ErrVersionConflict
	}
	return nil
}
