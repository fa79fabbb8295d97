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

const workoutCollectionName = "workouts"

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new workout session repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// Create inserts a new workout session.
func (r *mongoWorkoutRepository) Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error) {
	if session.UserSub == "" || session.Name == "" {
		return primitive.NilObjectID, errors.New("workout session requires userSub and name")
	}
	session.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout ID")
	}
	return insertedID, nil
}

// ListByUser retrieves every session owned by the user, newest date first.
func (r *mongoWorkoutRepository) ListByUser(ctx context.Context, userSub string) ([]domain.WorkoutSession, error) {
	filter := bson.M{"userSub": userSub}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []domain.WorkoutSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindActiveInWindow returns the uncompleted session dated within [start, end).
func (r *mongoWorkoutRepository) FindActiveInWindow(ctx context.Context, userSub string, start, end time.Time) (*domain.WorkoutSession, error) {
	filter := bson.M{
		"userSub":   userSub,
		"date":      bson.M{"$gte": start, "$lt": end},
		"completed": bson.M{"$ne": true},
	}

	var session domain.WorkoutSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// ArchiveActiveInWindow force-completes every stale active session in the
// window. Part of the one-active-session-per-day guarantee.
func (r *mongoWorkoutRepository) ArchiveActiveInWindow(ctx context.Context, userSub string, start, end, completedAt time.Time) (int64, error) {
	filter := bson.M{
		"userSub":   userSub,
		"date":      bson.M{"$gte": start, "$lt": end},
		"completed": bson.M{"$ne": true},
	}
	update := bson.M{"$set": bson.M{
		"completed":   true,
		"completedAt": completedAt,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// History returns one page of completed sessions, newest completedAt first,
// along with the total completed count.
func (r *mongoWorkoutRepository) History(ctx context.Context, userSub string, page, limit int) ([]domain.WorkoutSession, int64, error) {
	filter := bson.M{"userSub": userSub, "completed": true}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := int64(page-1) * int64(limit)
	findOptions := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var sessions []domain.WorkoutSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Update applies the whitelisted fields only. The $set document is built
// here, so completion state and ownership cannot be mutated via this path.
func (r *mongoWorkoutRepository) Update(ctx context.Context, id primitive.ObjectID, userSub string, update domain.WorkoutUpdate) (*domain.WorkoutSession, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Exercises != nil {
		set["exercises"] = *update.Exercises
	}
	if len(set) == 0 {
		// Nothing to change; fall back to a plain owner-scoped read.
		return r.getOwned(ctx, id, userSub)
	}

	filter := bson.M{"_id": id, "userSub": userSub}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session domain.WorkoutSession
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// SetCompletion flips session completion. completedAt is set on complete and
// unset on undo; the two always move together.
func (r *mongoWorkoutRepository) SetCompletion(ctx context.Context, id primitive.ObjectID, userSub string, completed bool, completedAt *time.Time) (*domain.WorkoutSession, error) {
	var update bson.M
	if completed {
		update = bson.M{"$set": bson.M{"completed": true, "completedAt": completedAt}}
	} else {
		update = bson.M{
			"$set":   bson.M{"completed": false},
			"$unset": bson.M{"completedAt": ""},
		}
	}

	filter := bson.M{"_id": id, "userSub": userSub}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session domain.WorkoutSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes the session if it exists and is owned by the user.
func (r *mongoWorkoutRepository) Delete(ctx context.Context, id primitive.ObjectID, userSub string) error {
	filter := bson.M{"_id": id, "userSub": userSub}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// prProjection maps an unwound (session, exercise) row to the PR view shape.
var prProjection = bson.D{
	{Key: "_id", Value: 0},
	{Key: "exercise", Value: "$exercises.name"},
	{Key: "weight", Value: "$exercises.weight"},
	{Key: "sets", Value: "$exercises.sets"},
	{Key: "reps", Value: "$exercises.reps"},
	{Key: "workoutId", Value: "$workoutId"},
	{Key: "workoutName", Value: "$workoutName"},
	{Key: "date", Value: "$completedAt"},
}

// prUnwindStages filters to the user's completed sessions, flattens to one
// row per (session, exercise), and attaches the normalized grouping name.
func prUnwindStages(userSub string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "userSub", Value: userSub},
			{Key: "completed", Value: true},
		}}},
		{{Key: "$unwind", Value: "$exercises"}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "normName", Value: bson.D{{Key: "$toLower", Value: bson.D{
				{Key: "$trim", Value: bson.D{{Key: "input", Value: "$exercises.name"}}},
			}}}},
			{Key: "workoutId", Value: "$_id"},
			{Key: "workoutName", Value: "$name"},
		}}},
	}
}

// PersonalRecords computes the all-time best occurrence per distinct
// exercise name: sort weight desc then completedAt desc, group, keep the
// first row per normalized name, heaviest groups first.
func (r *mongoWorkoutRepository) PersonalRecords(ctx context.Context, userSub string) ([]domain.PersonalRecord, error) {
	pipeline := prUnwindStages(userSub)
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "exercises.weight", Value: -1},
			{Key: "completedAt", Value: -1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$normName"},
			{Key: "best", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$best"}}}},
		bson.D{{Key: "$project", Value: prProjection}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "weight", Value: -1}}}},
	)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.PersonalRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ExerciseOccurrences lists every appearance of the normalized exercise name
// across completed sessions, newest first, with the total count computed in
// the same aggregation via $facet.
func (r *mongoWorkoutRepository) ExerciseOccurrences(ctx context.Context, userSub, normalizedName string, page, limit int) ([]domain.ExerciseOccurrence, int64, error) {
	skip := int64(page-1) * int64(limit)

	pipeline := prUnwindStages(userSub)
	pipeline = append(pipeline,
		bson.D{{Key: "$match", Value: bson.D{{Key: "normName", Value: normalizedName}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "completedAt", Value: -1}}}},
		bson.D{{Key: "$project", Value: prProjection}},
		bson.D{{Key: "$facet", Value: bson.D{
			{Key: "items", Value: bson.A{
				bson.D{{Key: "$skip", Value: skip}},
				bson.D{{Key: "$limit", Value: int64(limit)}},
			}},
			{Key: "total", Value: bson.A{
				bson.D{{Key: "$count", Value: "count"}},
			}},
		}}},
	)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var result []struct {
		Items []domain.ExerciseOccurrence `bson:"items"`
		Total []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
	}
	if err = cursor.All(ctx, &result); err != nil {
		return nil, 0, err
	}
	if len(result) == 0 {
		return nil, 0, nil
	}

	var total int64
	if len(result[0].Total) > 0 {
		total = result[0].Total[0].Count
	}
	return result[0].Items, total, nil
}

// getOwned is an owner-scoped point read.
func (r *mongoWorkoutRepository) getOwned(ctx context.Context, id primitive.ObjectID, userSub string) (*domain.WorkoutSession, error) {
	filter := bson.M{"_id": id, "userSub": userSub}

	var session domain.WorkoutSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// History queries: completed sessions newest first.
			Keys: bson.D{{Key: "userSub", Value: 1}, {Key: "completed", Value: 1}, {Key: "completedAt", Value: -1}},
		},
		{
			// PR and drill-down lookups by exercise name.
			Keys: bson.D{{Key: "userSub", Value: 1}, {Key: "exercises.name", Value: 1}},
		},
		{
			// Day-window filters and the all-sessions listing.
			Keys: bson.D{{Key: "userSub", Value: 1}, {Key: "date", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logrus.Warnf("failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
