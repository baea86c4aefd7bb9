package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

const collectionTechnicians = "technicians"

// DefaultTechnicians seeds an empty technicians collection.
var DefaultTechnicians = []domain.Technician{
	{ID: "T1", Name: "Ravi Kumar", Phone: "9876543210", Rating: 4.5},
	{ID: "T2", Name: "Simran Kaur", Phone: "9876501234", Rating: 4.5},
	{ID: "T3", Name: "Arjun Mehta", Phone: "9876512345", Rating: 4.5},
}

// TechnicianRepository implements ports.TechnicianRepository using MongoDB.
type TechnicianRepository struct {
	col *mongo.Collection
}

func NewTechnicianRepository(db *mongo.Database) *TechnicianRepository {
	return &TechnicianRepository{col: db.Collection(collectionTechnicians)}
}

// Allocate increments the job counter of the least busy technician and
// returns it. Ties go to the lowest technician id.
func (r *TechnicianRepository) Allocate(ctx context.Context) (*domain.Technician, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "active_jobs", Value: 1}, {Key: "tech_id", Value: 1}}).
		SetReturnDocument(options.After)

	var t domain.Technician
	err := r.col.FindOneAndUpdate(ctx, bson.M{}, bson.M{"$inc": bson.M{"active_jobs": 1}}, opts).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("allocate technician: %w", err)
	}
	return &t, nil
}

// Release gives back one job slot, never going below zero.
func (r *TechnicianRepository) Release(ctx context.Context, technicianID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"tech_id": technicianID, "active_jobs": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"active_jobs": -1}},
	)
	if err != nil {
		return fmt.Errorf("release technician %s: %w", technicianID, err)
	}
	return nil
}

// Seed inserts techs when the collection is empty.
func (r *TechnicianRepository) Seed(ctx context.Context, techs []domain.Technician) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count technicians: %w", err)
	}
	if n > 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(techs))
	for _, t := range techs {
		docs = append(docs, t)
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("seed technicians: %w", err)
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the technicians collection.
func (r *TechnicianRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tech_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "active_jobs", Value: 1}, {Key: "tech_id", Value: 1}}},
	})
	return err
}
