package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ironlog/backend/internal/clock"
	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound   = errors.New("workout not found")
	ErrWorkoutValidation = errors.New("workout validation failed")
)

// History/drill-down pagination bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// HistoryPage is one page of completed sessions plus the total count.
type HistoryPage struct {
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
	Items []domain.WorkoutSession `json:"items"`
}

// OccurrencePage is one page of PR drill-down rows plus the total count.
type OccurrencePage struct {
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
	Limit int                         `json:"limit"`
	Items []domain.ExerciseOccurrence `json:"items"`
}

// --- Service Interface ---
type WorkoutService interface {
	ListWorkouts(ctx context.Context, userSub string) ([]domain.WorkoutSession, error)
	GetTodayWorkout(ctx context.Context, userSub string) (*domain.WorkoutSession, error)
	GetHistory(ctx context.Context, userSub string, page, limit int) (*HistoryPage, error)
	CreateWorkout(ctx context.Context, userSub, name string, exercises []domain.Exercise, date string) (*domain.WorkoutSession, error)
	UpdateWorkout(ctx context.Context, userSub string, id primitive.ObjectID, update domain.WorkoutUpdate) (*domain.WorkoutSession, error)
	CompleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) (*domain.WorkoutSession, error)
	UndoCompleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) (*domain.WorkoutSession, error)
	DeleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) error
	PersonalRecords(ctx context.Context, userSub string) ([]domain.PersonalRecord, error)
	PROccurrences(ctx context.Context, userSub, exercise string, page, limit int) (*OccurrencePage, error)
}

// --- Service Implementation ---

// workoutService implements the WorkoutService interface.
type workoutService struct {
	workoutRepo repository.WorkoutRepository
	clk         clock.Clock
	loc         *time.Location
}

// NewWorkoutService creates a new instance of workoutService. The clock and
// location drive every "today" decision, so tests can pin both.
func NewWorkoutService(workoutRepo repository.WorkoutRepository, clk clock.Clock, loc *time.Location) WorkoutService {
	if loc == nil {
		loc = time.Local
	}
	return &workoutService{
		workoutRepo: workoutRepo,
		clk:         clk,
		loc:         loc,
	}
}

// ListWorkouts returns every session owned by the user, newest date first.
func (s *workoutService) ListWorkouts(ctx context.Context, userSub string) ([]domain.WorkoutSession, error) {
	return s.workoutRepo.ListByUser(ctx, userSub)
}

// GetTodayWorkout returns the active session for the caller's today, or
// ErrWorkoutNotFound when no workout has been logged yet.
func (s *workoutService) GetTodayWorkout(ctx context.Context, userSub string) (*domain.WorkoutSession, error) {
	start, end := clock.DayWindow(s.clk.Now(), s.loc)
	session, err := s.workoutRepo.FindActiveInWindow(ctx, userSub, start, end)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return session, nil
}

// GetHistory returns one page of completed sessions, newest completion first.
func (s *workoutService) GetHistory(ctx context.Context, userSub string, page, limit int) (*HistoryPage, error) {
	page, limit = clampPage(page, limit, DefaultPageLimit, MaxPageLimit)

	items, total, err := s.workoutRepo.History(ctx, userSub, page, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.WorkoutSession{}
	}
	return &HistoryPage{Total: total, Page: page, Limit: limit, Items: items}, nil
}

// CreateWorkout validates the input, force-completes any stale active session
// for the target day (archive-on-create), and inserts the new session.
//
// The archive and the insert are two separate single-document writes, not a
// transaction: two concurrent creates for the same day can both pass the
// archive step and both insert, leaving two active sessions until the next
// create sweeps them. Accepted so the service runs on standalone topologies
// without transactions; the window is pinned in tests rather than assumed
// away.
func (s *workoutService) CreateWorkout(ctx context.Context, userSub, name string, exercises []domain.Exercise, date string) (*domain.WorkoutSession, error) {
	if err := domain.ValidateWorkoutName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkoutValidation, err)
	}
	if err := domain.ValidateExercises(exercises); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkoutValidation, err)
	}

	target := s.clk.Now()
	if date != "" {
		parsed, err := s.parseTargetDate(date)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date format", ErrWorkoutValidation)
		}
		target = parsed
	}
	dayStart, dayEnd := clock.DayWindow(target, s.loc)

	now := s.clk.Now()
	if _, err := s.workoutRepo.ArchiveActiveInWindow(ctx, userSub, dayStart, dayEnd, now); err != nil {
		return nil, err
	}

	session := &domain.WorkoutSession{
		UserSub:   userSub,
		Date:      dayStart,
		Day:       dayStart.Format("Mon"),
		Name:      strings.TrimSpace(name),
		Exercises: domain.NormalizeExercises(exercises),
		Completed: false,
	}

	id, err := s.workoutRepo.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id
	return session, nil
}

// UpdateWorkout applies a partial update of name and/or exercises. Any other
// payload field never reaches the store.
func (s *workoutService) UpdateWorkout(ctx context.Context, userSub string, id primitive.ObjectID, update domain.WorkoutUpdate) (*domain.WorkoutSession, error) {
	if update.Name != nil {
		if err := domain.ValidateWorkoutName(*update.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWorkoutValidation, err)
		}
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if update.Exercises != nil {
		if err := domain.ValidateExercises(*update.Exercises); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWorkoutValidation, err)
		}
		normalized := domain.NormalizeExercises(*update.Exercises)
		update.Exercises = &normalized
	}

	session, err := s.workoutRepo.Update(ctx, id, userSub, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return session, nil
}

// CompleteWorkout transitions Active -> Completed, stamping completedAt.
// Re-completing an already-completed session just refreshes the timestamp.
func (s *workoutService) CompleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	now := s.clk.Now()
	session, err := s.workoutRepo.SetCompletion(ctx, id, userSub, true, &now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return session, nil
}

// UndoCompleteWorkout transitions Completed -> Active, clearing completedAt.
func (s *workoutService) UndoCompleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	session, err := s.workoutRepo.SetCompletion(ctx, id, userSub, false, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return session, nil
}

// DeleteWorkout removes the session unconditionally. No soft delete.
func (s *workoutService) DeleteWorkout(ctx context.Context, userSub string, id primitive.ObjectID) error {
	err := s.workoutRepo.Delete(ctx, id, userSub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkoutNotFound
		}
		return err
	}
	return nil
}

// PersonalRecords returns the per-exercise all-time bests, heaviest first.
func (s *workoutService) PersonalRecords(ctx context.Context, userSub string) ([]domain.PersonalRecord, error) {
	records, err := s.workoutRepo.PersonalRecords(ctx, userSub)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.PersonalRecord{}
	}
	return records, nil
}

// PROccurrences returns the paginated occurrence history behind one PR
// entry. The exercise name matches case- and whitespace-insensitively.
func (s *workoutService) PROccurrences(ctx context.Context, userSub, exercise string, page, limit int) (*OccurrencePage, error) {
	normalized := domain.NormalizeExerciseName(exercise)
	if normalized == "" {
		return nil, fmt.Errorf("%w: exercise name is required", ErrWorkoutValidation)
	}
	page, limit = clampPage(page, limit, DefaultPageLimit, MaxPageLimit)

	items, total, err := s.workoutRepo.ExerciseOccurrences(ctx, userSub, normalized, page, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ExerciseOccurrence{}
	}
	return &OccurrencePage{Total: total, Page: page, Limit: limit, Items: items}, nil
}

// parseTargetDate resolves the day a created session belongs to. A date-only
// value names a calendar day in the service's own location; a full timestamp
// names an instant and resolves to whatever local day contains it.
func (s *workoutService) parseTargetDate(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// clampPage normalizes pagination: page >= 1, limit in [1, max], zero limit
// means the default.
func clampPage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

