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

const (
	collectionInstallations = "installation_requests"
	collectionCounters      = "counters"
)

var activeStatuses = bson.A{
	string(domain.StatusRequested),
	string(domain.StatusAllocated),
	string(domain.StatusScheduled),
}

// InstallationRepository implements ports.InstallationRepository using MongoDB.
type InstallationRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewInstallationRepository(db *mongo.Database) *InstallationRepository {
	return &InstallationRepository{
		col:      db.Collection(collectionInstallations),
		counters: db.Collection(collectionCounters),
	}
}

// Create inserts a new installation request document.
func (r *InstallationRepository) Create(ctx context.Context, req *domain.InstallationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("insert installation request: %w", err)
	}
	return nil
}

// FindByID retrieves a request by id. When userID is non-zero an additional
// filter by user_id is applied.
func (r *InstallationRepository) FindByID(ctx context.Context, requestID string, userID uint64) (*domain.InstallationRequest, error) {
	filter := bson.M{"request_id": requestID}
	if userID != 0 {
		filter["user_id"] = userID
	}
	return r.findOne(ctx, filter, nil)
}

// FindByIdempotencyKey retrieves the request a farmer created with key.
func (r *InstallationRepository) FindByIdempotencyKey(ctx context.Context, userID uint64, key string) (*domain.InstallationRequest, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "idempotency_key": key}, nil)
}

// FindLatestActive returns the newest request of userID that is not installed or cancelled.
func (r *InstallationRepository) FindLatestActive(ctx context.Context, userID uint64) (*domain.InstallationRequest, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"user_id": userID, "status": bson.M{"$in": activeStatuses}}, opts)
}

func (r *InstallationRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.InstallationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var req domain.InstallationRequest
	var err error
	if opts != nil {
		err = r.col.FindOne(ctx, filter, opts).Decode(&req)
	} else {
		err = r.col.FindOne(ctx, filter).Decode(&req)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstallationNotFound
		}
		return nil, fmt.Errorf("find installation request: %w", err)
	}
	return &req, nil
}

// UpdateStatus atomically sets the status, appends a history entry and
// replaces the appointment when one is given.
func (r *InstallationRepository) UpdateStatus(
	ctx context.Context,
	requestID string,
	status domain.InstallationStatus,
	ts time.Time,
	notes string,
	appointment *domain.Appointment,
) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"status": string(status)}
	if appointment != nil {
		set["appointment"] = appointment
	}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"status_history": domain.StatusHistoryEntry{
			Status:    status,
			Timestamp: ts.UTC(),
			Notes:     notes,
		}},
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"request_id": requestID}, update)
	if err != nil {
		return fmt.Errorf("update installation status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInstallationNotFound
	}
	return nil
}

// NextSequence atomically increments and returns the named counter.
func (r *InstallationRepository) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return doc.Seq, nil
}

// EnsureIndexes creates necessary indexes on the installation collection.
func (r *InstallationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{
				"idempotency_key": bson.M{"$type": "string"},
			}),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
