package mongo

import (
	"context"
	"errors"
	"time"

	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/repository"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const weightCollectionName = "weightEntries"

// mongoWeightRepository implements repository.WeightRepository
type mongoWeightRepository struct {
	collection *mongo.Collection
}

// NewMongoWeightRepository creates a new body-weight entry repository.
func NewMongoWeightRepository(db *mongo.Database) repository.WeightRepository {
	return &mongoWeightRepository{
		collection: db.Collection(weightCollectionName),
	}
}

// FindByDay returns the entry for the exact day key, or ErrNotFound.
func (r *mongoWeightRepository) FindByDay(ctx context.Context, userSub string, day time.Time) (*domain.WeightEntry, error) {
	filter := bson.M{"userSub": userSub, "date": day}

	var entry domain.WeightEntry
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Upsert sets the day's weight, inserting the entry if it does not exist.
func (r *mongoWeightRepository) Upsert(ctx context.Context, userSub string, day time.Time, weight float64, now time.Time) (*domain.WeightEntry, error) {
	filter := bson.M{"userSub": userSub, "date": day}
	update := bson.M{
		"$set": bson.M{
			"weight":    weight,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"userSub":   userSub,
			"date":      day,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var entry domain.WeightEntry
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Insert creates an entry, mapping a unique-index clash to ErrAlreadyExists.
func (r *mongoWeightRepository) Insert(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error) {
	if entry.UserSub == "" {
		return primitive.NilObjectID, errors.New("weight entry requires userSub")
	}
	entry.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted weight entry ID")
	}
	return insertedID, nil
}

// HistoryRange returns one page of entries with date in [from, to], newest
// first, plus the total count in the range.
func (r *mongoWeightRepository) HistoryRange(ctx context.Context, userSub string, from, to time.Time, page, limit int) ([]domain.WeightEntry, int64, error) {
	filter := bson.M{
		"userSub": userSub,
		"date":    bson.M{"$gte": from, "$lte": to},
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := int64(page-1) * int64(limit)
	findOptions := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []domain.WeightEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// DeleteByDay removes the entry for the day key, if any.
func (r *mongoWeightRepository) DeleteByDay(ctx context.Context, userSub string, day time.Time) error {
	filter := bson.M{"userSub": userSub, "date": day}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWeightIndexes creates necessary indexes. Call during startup.
func EnsureWeightIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One entry per user per day.
			Keys:    bson.D{{Key: "userSub", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// History queries, newest first.
			Keys: bson.D{{Key: "userSub", Value: 1}, {Key: "date", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logrus.Warnf("failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
