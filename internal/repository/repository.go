package repository

import (
	"context"
	"time"

	"ironlog/backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound      = RepositoryError("not found")
	ErrAlreadyExists = RepositoryError("already exists")
	ErrUpdateFailed  = RepositoryError("update failed")
	ErrDeleteFailed  = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WorkoutRepository defines the interface for interacting with workout
// session documents. Every read/write is scoped by the owning userSub, so
// cross-user access is impossible by construction.
type WorkoutRepository interface {
	Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error)
	ListByUser(ctx context.Context, userSub string) ([]domain.WorkoutSession, error)
	// FindActiveInWindow returns the uncompleted session whose date falls in
	// [start, end), or ErrNotFound.
	FindActiveInWindow(ctx context.Context, userSub string, start, end time.Time) (*domain.WorkoutSession, error)
	// ArchiveActiveInWindow marks every uncompleted session in [start, end)
	// as completed at the given instant, returning how many were archived.
	ArchiveActiveInWindow(ctx context.Context, userSub string, start, end, completedAt time.Time) (int64, error)
	// History returns completed sessions newest-completedAt-first, plus the
	// total completed count for the user.
	History(ctx context.Context, userSub string, page, limit int) ([]domain.WorkoutSession, int64, error)
	// Update applies the whitelisted fields and returns the updated session.
	Update(ctx context.Context, id primitive.ObjectID, userSub string, update domain.WorkoutUpdate) (*domain.WorkoutSession, error)
	// SetCompletion flips the completion state, setting or clearing
	// completedAt, and returns the updated session.
	SetCompletion(ctx context.Context, id primitive.ObjectID, userSub string, completed bool, completedAt *time.Time) (*domain.WorkoutSession, error)
	Delete(ctx context.Context, id primitive.ObjectID, userSub string) error
	// PersonalRecords computes the per-exercise all-time-best rows across
	// the user's completed sessions, heaviest first.
	PersonalRecords(ctx context.Context, userSub string) ([]domain.PersonalRecord, error)
	// ExerciseOccurrences lists every appearance of the (normalized) exercise
	// name in completed sessions, newest first, plus the total count.
	ExerciseOccurrences(ctx context.Context, userSub, normalizedName string, page, limit int) ([]domain.ExerciseOccurrence, int64, error)
}

// WeightRepository defines the interface for interacting with body-weight
// entries, one per (userSub, UTC-midnight day).
type WeightRepository interface {
	FindByDay(ctx context.Context, userSub string, day time.Time) (*domain.WeightEntry, error)
	// Upsert sets the weight for the day, inserting if absent, and returns
	// the resulting entry.
	Upsert(ctx context.Context, userSub string, day time.Time, weight float64, now time.Time) (*domain.WeightEntry, error)
	// Insert creates an entry and fails with ErrAlreadyExists on a day clash.
	Insert(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error)
	HistoryRange(ctx context.Context, userSub string, from, to time.Time, page, limit int) ([]domain.WeightEntry, int64, error)
	DeleteByDay(ctx context.Context, userSub string, day time.Time) error
}

// ProfileRepository defines the interface for interacting with user profiles.
type ProfileRepository interface {
	GetByUserSub(ctx context.Context, userSub string) (*domain.Profile, error)
	Create(ctx context.Context, profile *domain.Profile) (primitive.ObjectID, error)
	Update(ctx context.Context, userSub string, update domain.ProfileUpdate) (*domain.Profile, error)
	// AddLoginDate appends the day if not already recorded.
	AddLoginDate(ctx context.Context, userSub string, day time.Time) error
}
