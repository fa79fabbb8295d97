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

// Existing deployments store profiles under this exact (capitalized)
// collection name; kept for data compatibility.
const profileCollectionName = "Profile"

// mongoProfileRepository implements repository.ProfileRepository
type mongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a new profile repository.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

// GetByUserSub returns the user's profile, or ErrNotFound.
func (r *mongoProfileRepository) GetByUserSub(ctx context.Context, userSub string) (*domain.Profile, error) {
	filter := bson.M{"userSub": userSub}

	var profile domain.Profile
	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Create inserts a profile, mapping a userSub clash to ErrAlreadyExists.
func (r *mongoProfileRepository) Create(ctx context.Context, profile *domain.Profile) (primitive.ObjectID, error) {
	if profile.UserSub == "" {
		return primitive.NilObjectID, errors.New("profile requires userSub")
	}
	profile.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted profile ID")
	}
	return insertedID, nil
}

// Update applies the whitelisted profile fields and returns the result.
func (r *mongoProfileRepository) Update(ctx context.Context, userSub string, update domain.ProfileUpdate) (*domain.Profile, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Weight != nil {
		set["weight"] = *update.Weight
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.Goal != nil {
		set["goal"] = *update.Goal
	}
	if update.Age != nil {
		set["age"] = *update.Age
	}
	if update.Height != nil {
		set["height"] = *update.Height
	}
	if update.ProfileCompleted != nil {
		set["profileCompleted"] = *update.ProfileCompleted
	}
	if len(set) == 0 {
		return r.GetByUserSub(ctx, userSub)
	}

	filter := bson.M{"userSub": userSub}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var profile domain.Profile
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// AddLoginDate appends the day to loginDates if not already present.
func (r *mongoProfileRepository) AddLoginDate(ctx context.Context, userSub string, day time.Time) error {
	filter := bson.M{"userSub": userSub}
	update := bson.M{"$addToSet": bson.M{"loginDates": day}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureProfileIndexes creates necessary indexes. Call during startup.
func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userSub", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logrus.Warnf("failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
