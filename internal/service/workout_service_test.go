package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stepClock is a mutable test clock.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// mockWorkoutRepo is an in-memory WorkoutRepository implementing the same
// contract as the mongo repository, including the PR ranking semantics. Each
// method is a single atomic step, like the single-document mongo writes it
// stands in for, so tests can interleave calls from multiple goroutines.
type mockWorkoutRepo struct {
	mu           sync.Mutex
	sessions     map[primitive.ObjectID]*domain.WorkoutSession
	archiveCalls int
	createCalls  int

	// afterArchive, when set, runs once ArchiveActiveInWindow has applied,
	// letting a test hold the gap between the archive and the insert.
	afterArchive func()
}

func newMockWorkoutRepo() *mockWorkoutRepo {
	return &mockWorkoutRepo{sessions: make(map[primitive.ObjectID]*domain.WorkoutSession)}
}

func (m *mockWorkoutRepo) Create(_ context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	id := primitive.NewObjectID()
	stored := *session
	stored.ID = id
	stored.Exercises = append([]domain.Exercise(nil), session.Exercises...)
	m.sessions[id] = &stored
	return id, nil
}

func (m *mockWorkoutRepo) ListByUser(_ context.Context, userSub string) ([]domain.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkoutSession
	for _, s := range m.sessions {
		if s.UserSub == userSub {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *mockWorkoutRepo) FindActiveInWindow(_ context.Context, userSub string, start, end time.Time) (*domain.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserSub == userSub && !s.Completed && !s.Date.Before(start) && s.Date.Before(end) {
			found := *s
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockWorkoutRepo) ArchiveActiveInWindow(_ context.Context, userSub string, start, end, completedAt time.Time) (int64, error) {
	m.mu.Lock()
	m.archiveCalls++
	var n int64
	for _, s := range m.sessions {
		if s.UserSub == userSub && !s.Completed && !s.Date.Before(start) && s.Date.Before(end) {
			s.Completed = true
			at := completedAt
			s.CompletedAt = &at
			n++
		}
	}
	after := m.afterArchive
	m.mu.Unlock()

	if after != nil {
		after()
	}
	return n, nil
}

func (m *mockWorkoutRepo) History(_ context.Context, userSub string, page, limit int) ([]domain.WorkoutSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var completed []domain.WorkoutSession
	for _, s := range m.sessions {
		if s.UserSub == userSub && s.Completed {
			completed = append(completed, *s)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedAt.After(*completed[j].CompletedAt)
	})
	total := int64(len(completed))
	start := (page - 1) * limit
	if start >= len(completed) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(completed) {
		end = len(completed)
	}
	return completed[start:end], total, nil
}

func (m *mockWorkoutRepo) Update(_ context.Context, id primitive.ObjectID, userSub string, update domain.WorkoutUpdate) (*domain.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserSub != userSub {
		return nil, repository.ErrNotFound
	}
	if update.Name != nil {
		s.Name = *update.Name
	}
	if update.Exercises != nil {
		s.Exercises = append([]domain.Exercise(nil), *update.Exercises...)
	}
	out := *s
	return &out, nil
}

func (m *mockWorkoutRepo) SetCompletion(_ context.Context, id primitive.ObjectID, userSub string, completed bool, completedAt *time.Time) (*domain.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserSub != userSub {
		return nil, repository.ErrNotFound
	}
	s.Completed = completed
	if completedAt != nil {
		at := *completedAt
		s.CompletedAt = &at
	} else {
		s.CompletedAt = nil
	}
	out := *s
	return &out, nil
}

func (m *mockWorkoutRepo) Delete(_ context.Context, id primitive.ObjectID, userSub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserSub != userSub {
		return repository.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// occurrenceRows flattens completed sessions to (session, exercise) rows.
// Caller holds m.mu.
func (m *mockWorkoutRepo) occurrenceRows(userSub string) []domain.ExerciseOccurrence {
	var rows []domain.ExerciseOccurrence
	for _, s := range m.sessions {
		if s.UserSub != userSub || !s.Completed {
			continue
		}
		for _, ex := range s.Exercises {
			rows = append(rows, domain.ExerciseOccurrence{
				Exercise:    ex.Name,
				Weight:      ex.Weight,
				Sets:        ex.Sets,
				Reps:        ex.Reps,
				WorkoutID:   s.ID,
				WorkoutName: s.Name,
				Date:        *s.CompletedAt,
			})
		}
	}
	return rows
}

func (m *mockWorkoutRepo) PersonalRecords(_ context.Context, userSub string) ([]domain.PersonalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.occurrenceRows(userSub)
	// Weight desc, then most recent completion wins ties.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weight != rows[j].Weight {
			return rows[i].Weight > rows[j].Weight
		}
		return rows[i].Date.After(rows[j].Date)
	})
	seen := make(map[string]bool)
	var records []domain.PersonalRecord
	for _, row := range rows {
		key := domain.NormalizeExerciseName(row.Exercise)
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, domain.PersonalRecord(row))
	}
	return records, nil
}

func (m *mockWorkoutRepo) ExerciseOccurrences(_ context.Context, userSub, normalizedName string, page, limit int) ([]domain.ExerciseOccurrence, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []domain.ExerciseOccurrence
	for _, row := range m.occurrenceRows(userSub) {
		if domain.NormalizeExerciseName(row.Exercise) == normalizedName {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	total := int64(len(rows))
	start := (page - 1) * limit
	if start >= len(rows) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}

func (m *mockWorkoutRepo) activeCountInWindow(userSub string, start, end time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserSub == userSub && !s.Completed && !s.Date.Before(start) && s.Date.Before(end) {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (WorkoutService, *mockWorkoutRepo, *stepClock) {
	t.Helper()
	repo := newMockWorkoutRepo()
	clk := &stepClock{t: time.Date(2025, time.April, 7, 18, 30, 0, 0, time.UTC)}
	return NewWorkoutService(repo, clk, time.UTC), repo, clk
}

const testUser = "user-sub-1"

func TestCreateWorkoutArchivesExistingActive(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateWorkout(ctx, testUser, "Push Day", nil, "")
	require.NoError(t, err)
	assert.False(t, first.Completed)

	clk.advance(2 * time.Hour)
	second, err := svc.CreateWorkout(ctx, testUser, "Pull Day", nil, "")
	require.NoError(t, err)

	// Exactly one active session remains for the day.
	dayStart := time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, repo.activeCountInWindow(testUser, dayStart, dayStart.AddDate(0, 0, 1)))

	archived := repo.sessions[first.ID]
	assert.True(t, archived.Completed)
	require.NotNil(t, archived.CompletedAt)
	assert.Equal(t, clk.t, *archived.CompletedAt)

	fresh := repo.sessions[second.ID]
	assert.False(t, fresh.Completed)
	assert.Nil(t, fresh.CompletedAt)
}

// The archive and the insert are separate writes, not a transaction. Two
// creates interleaved past the archive step both insert, leaving two active
// sessions for the day; that is the accepted cost of staying on
// single-document writes, and the next create sweeps both closed.
func TestConcurrentCreatesCanBothStayActive(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	// Hold each create in the gap until both have archived.
	var gate sync.WaitGroup
	gate.Add(2)
	repo.afterArchive = func() {
		gate.Done()
		gate.Wait()
	}

	var done sync.WaitGroup
	done.Add(2)
	for _, name := range []string{"Push Day", "Pull Day"} {
		go func(name string) {
			defer done.Done()
			_, err := svc.CreateWorkout(ctx, testUser, name, nil, "")
			assert.NoError(t, err)
		}(name)
	}
	done.Wait()

	dayStart := time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	assert.Equal(t, 2, repo.activeCountInWindow(testUser, dayStart, dayEnd))

	// The next (sequential) create repairs the day: its archive sweep closes
	// both strays and leaves only itself active.
	repo.afterArchive = nil
	clk.advance(time.Hour)
	_, err := svc.CreateWorkout(ctx, testUser, "Leg Day", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.activeCountInWindow(testUser, dayStart, dayEnd))
}

func TestCreateWorkoutSetsDateAndDayLabel(t *testing.T) {
	svc, repo, _ := newTestService(t)

	session, err := svc.CreateWorkout(context.Background(), testUser, "Leg Day", nil, "2025-04-04") // a Friday
	require.NoError(t, err)

	stored := repo.sessions[session.ID]
	assert.Equal(t, time.Date(2025, time.April, 4, 0, 0, 0, 0, time.UTC), stored.Date)
	assert.Equal(t, "Fri", stored.Day)
}

func TestCreateWorkoutDateOnlyUsesServiceLocation(t *testing.T) {
	// A server west of UTC: a date-only payload must name that calendar day
	// locally, not land in the previous day's window via UTC midnight.
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	repo := newMockWorkoutRepo()
	clk := &stepClock{t: time.Date(2025, time.April, 7, 18, 30, 0, 0, time.UTC)}
	svc := NewWorkoutService(repo, clk, loc)

	session, err := svc.CreateWorkout(context.Background(), testUser, "Leg Day", nil, "2025-04-04")
	require.NoError(t, err)

	stored := repo.sessions[session.ID]
	assert.Equal(t, time.Date(2025, time.April, 4, 0, 0, 0, 0, loc), stored.Date)
	assert.Equal(t, "Fri", stored.Day)

	// Full timestamps keep instant semantics and resolve to the local day
	// containing them: 01:30 UTC on the 5th is still the 4th in New York.
	session, err = svc.CreateWorkout(context.Background(), testUser, "Late Session", nil, "2025-04-05T01:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 4, 0, 0, 0, 0, loc), repo.sessions[session.ID].Date)
}

func TestCreateWorkoutRejectsBadDate(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.CreateWorkout(context.Background(), testUser, "Leg Day", nil, "07/04/2025")
	require.ErrorIs(t, err, ErrWorkoutValidation)
	assert.Contains(t, err.Error(), "date")
	assert.Equal(t, 0, repo.createCalls)
}

func TestCreateWorkoutValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateWorkout(ctx, testUser, "Leg Day 2", nil, "")
	require.ErrorIs(t, err, ErrWorkoutValidation)

	_, err = svc.CreateWorkout(ctx, testUser, "   ", nil, "")
	require.ErrorIs(t, err, ErrWorkoutValidation)

	_, err = svc.CreateWorkout(ctx, testUser, "Leg Day", []domain.Exercise{
		{Name: "Squat", Sets: 5, Reps: 5, Weight: 100},
		{Name: "Bench_Press", Sets: 3, Reps: 8, Weight: 60},
	}, "")
	require.ErrorIs(t, err, ErrWorkoutValidation)
	assert.Contains(t, err.Error(), "exercise 1")

	// Rejected before any write: no archive, no insert.
	assert.Equal(t, 0, repo.archiveCalls)
	assert.Equal(t, 0, repo.createCalls)
}

func TestCreateWorkoutNormalizesExercises(t *testing.T) {
	svc, repo, _ := newTestService(t)

	session, err := svc.CreateWorkout(context.Background(), testUser, "  Leg Day  ", []domain.Exercise{
		{Name: "  Front-Squat ", Sets: 3, Reps: 10, Weight: 80},
	}, "")
	require.NoError(t, err)

	stored := repo.sessions[session.ID]
	assert.Equal(t, "Leg Day", stored.Name)
	assert.Equal(t, "Front-Squat", stored.Exercises[0].Name)
}

func TestCompleteUndoRoundTrip(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkout(ctx, testUser, "Push Day", []domain.Exercise{
		{Name: "Bench Press", Sets: 3, Reps: 8, Weight: 60},
	}, "")
	require.NoError(t, err)

	clk.advance(time.Hour)
	completed, err := svc.CompleteWorkout(ctx, testUser, created.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, clk.t, *completed.CompletedAt)

	undone, err := svc.UndoCompleteWorkout(ctx, testUser, created.ID)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.Nil(t, undone.CompletedAt)

	// Everything else survives the round trip.
	assert.Equal(t, created.Name, undone.Name)
	assert.Equal(t, created.Exercises, undone.Exercises)
	assert.Equal(t, created.Date, undone.Date)
}

func TestCompleteRefreshesTimestamp(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkout(ctx, testUser, "Push Day", nil, "")
	require.NoError(t, err)

	first, err := svc.CompleteWorkout(ctx, testUser, created.ID)
	require.NoError(t, err)

	clk.advance(30 * time.Minute)
	second, err := svc.CompleteWorkout(ctx, testUser, created.ID)
	require.NoError(t, err)

	// Re-completing just refreshes completedAt.
	assert.True(t, second.CompletedAt.After(*first.CompletedAt))
}

func TestOperationsScopedByOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkout(ctx, testUser, "Push Day", nil, "")
	require.NoError(t, err)

	name := "Stolen"
	_, err = svc.UpdateWorkout(ctx, "other-user", created.ID, domain.WorkoutUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	_, err = svc.CompleteWorkout(ctx, "other-user", created.ID)
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	err = svc.DeleteWorkout(ctx, "other-user", created.ID)
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	// The owner still sees the untouched session.
	today, err := svc.GetTodayWorkout(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Push Day", today.Name)
}

func TestGetTodayWorkoutAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetTodayWorkout(context.Background(), testUser)
	assert.ErrorIs(t, err, ErrWorkoutNotFound)
}

func TestUpdateWorkoutRevalidates(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorkout(ctx, testUser, "Push Day", nil, "")
	require.NoError(t, err)

	bad := "Push Day 9000"
	_, err = svc.UpdateWorkout(ctx, testUser, created.ID, domain.WorkoutUpdate{Name: &bad})
	require.ErrorIs(t, err, ErrWorkoutValidation)
	assert.Equal(t, "Push Day", repo.sessions[created.ID].Name)

	good := "  Heavy Push  "
	updated, err := svc.UpdateWorkout(ctx, testUser, created.ID, domain.WorkoutUpdate{Name: &good})
	require.NoError(t, err)
	assert.Equal(t, "Heavy Push", updated.Name)
}

func TestHistoryPagination(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	base := clk.t
	for i := 0; i < 25; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.sessions[primitive.NewObjectID()] = &domain.WorkoutSession{
			ID:          primitive.NewObjectID(),
			UserSub:     testUser,
			Name:        fmt.Sprintf("Session %c", 'A'+i),
			Date:        at,
			Completed:   true,
			CompletedAt: &at,
		}
	}

	page, err := svc.GetHistory(ctx, testUser, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Limit)
	require.Len(t, page.Items, 10)

	// Page 2 holds items 11-20 by completedAt descending.
	assert.Equal(t, base.Add(14*time.Hour), *page.Items[0].CompletedAt)
	assert.Equal(t, base.Add(5*time.Hour), *page.Items[9].CompletedAt)
}

func TestHistoryPaginationClamps(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.GetHistory(ctx, testUser, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	assert.NotNil(t, page.Items)

	page, err = svc.GetHistory(ctx, testUser, -3, 9999)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageLimit, page.Limit)
}

// seedCompleted inserts a completed session directly into the mock.
func seedCompleted(repo *mockWorkoutRepo, user, name string, completedAt time.Time, exercises ...domain.Exercise) {
	id := primitive.NewObjectID()
	repo.sessions[id] = &domain.WorkoutSession{
		ID:          id,
		UserSub:     user,
		Name:        name,
		Date:        completedAt,
		Exercises:   exercises,
		Completed:   true,
		CompletedAt: &completedAt,
	}
}

func TestPersonalRecordsPicksHeaviest(t *testing.T) {
	svc, repo, clk := newTestService(t)

	older := clk.t.Add(-48 * time.Hour)
	newer := clk.t.Add(-2 * time.Hour)
	seedCompleted(repo, testUser, "Leg Day", older, domain.Exercise{Name: "Squat", Sets: 5, Reps: 5, Weight: 100})
	seedCompleted(repo, testUser, "Heavy Legs", newer, domain.Exercise{Name: "Squat", Sets: 3, Reps: 3, Weight: 120})

	records, err := svc.PersonalRecords(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Squat", records[0].Exercise)
	assert.Equal(t, 120.0, records[0].Weight)
	assert.Equal(t, "Heavy Legs", records[0].WorkoutName)
	assert.Equal(t, newer, records[0].Date)
}

func TestPersonalRecordsTieBreaksByRecency(t *testing.T) {
	svc, repo, clk := newTestService(t)

	older := clk.t.Add(-48 * time.Hour)
	newer := clk.t.Add(-2 * time.Hour)
	seedCompleted(repo, testUser, "Old Bench", older, domain.Exercise{Name: "Bench Press", Sets: 3, Reps: 8, Weight: 80})
	seedCompleted(repo, testUser, "New Bench", newer, domain.Exercise{Name: "bench press", Sets: 5, Reps: 5, Weight: 80})

	records, err := svc.PersonalRecords(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "New Bench", records[0].WorkoutName)
	assert.Equal(t, newer, records[0].Date)
}

func TestPersonalRecordsIgnoreUncompletedSessions(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateWorkout(context.Background(), testUser, "Active Day", []domain.Exercise{
		{Name: "Deadlift", Sets: 1, Reps: 1, Weight: 200},
	}, "")
	require.NoError(t, err)

	records, err := svc.PersonalRecords(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPROccurrencesCaseAndWhitespaceInsensitive(t *testing.T) {
	svc, repo, clk := newTestService(t)

	seedCompleted(repo, testUser, "Push A", clk.t.Add(-3*time.Hour), domain.Exercise{Name: "Bench Press", Weight: 60})
	seedCompleted(repo, testUser, "Push B", clk.t.Add(-2*time.Hour), domain.Exercise{Name: " bench press ", Weight: 65})
	seedCompleted(repo, testUser, "Legs", clk.t.Add(-1*time.Hour), domain.Exercise{Name: "Squat", Weight: 100})

	lower, err := svc.PROccurrences(context.Background(), testUser, "bench press", 1, 50)
	require.NoError(t, err)
	padded, err := svc.PROccurrences(context.Background(), testUser, " Bench Press ", 1, 50)
	require.NoError(t, err)

	assert.Equal(t, int64(2), lower.Total)
	assert.Equal(t, lower.Items, padded.Items)
	// Newest first.
	assert.Equal(t, "Push B", lower.Items[0].WorkoutName)
}

func TestPROccurrencesRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.PROccurrences(context.Background(), testUser, "   ", 1, 50)
	assert.ErrorIs(t, err, ErrWorkoutValidation)
}
