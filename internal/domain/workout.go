package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxNameLength     = 100
	MaxExercises      = 50
	MaxSetsReps       = 1000
	MaxExerciseWeight = 10000
)

var (
	// Workout names: letters and spaces only.
	workoutNamePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)
	// Exercise names additionally allow hyphens ("Bench-Press").
	exerciseNamePattern = regexp.MustCompile(`^[A-Za-z\s\-]+$`)
)

// WorkoutSession is one day's logged workout for a user. At most one session
// per (user, calendar day) is active (completed=false); creation force-closes
// any stale active session for the same day before inserting.
type WorkoutSession struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserSub string             `bson:"userSub" json:"userSub"` // Cognito subject
	Date    time.Time          `bson:"date" json:"date"`
	// Day is the short weekday label ("Mon") derived from Date at creation
	// time for display grouping. Not re-derived on later mutation.
	Day         string     `bson:"day,omitempty" json:"day,omitempty"`
	Name        string     `bson:"name" json:"name"`
	Exercises   []Exercise `bson:"exercises" json:"exercises"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Exercise is an embedded value record within a session; order is meaningful.
type Exercise struct {
	Name      string  `bson:"name" json:"name"`
	Sets      int     `bson:"sets" json:"sets"`
	Reps      int     `bson:"reps" json:"reps"`
	Weight    float64 `bson:"weight" json:"weight"`
	Completed bool    `bson:"completed" json:"completed"`
}

// WorkoutUpdate carries the only fields the update operation may touch.
// Completion state, ownership and date are unreachable from this path.
type WorkoutUpdate struct {
	Name      *string
	Exercises *[]Exercise
}

// ValidateWorkoutName checks the session label: non-empty after trimming,
// letters and spaces only, at most MaxNameLength characters.
func ValidateWorkoutName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("workout name is required")
	}
	if len(trimmed) > MaxNameLength {
		return fmt.Errorf("workout name must be at most %d characters", MaxNameLength)
	}
	if !workoutNamePattern.MatchString(trimmed) {
		return fmt.Errorf("workout name can only contain letters and spaces")
	}
	return nil
}

// Validate checks one exercise entry; index identifies it in error messages.
func (e Exercise) Validate(index int) error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return fmt.Errorf("exercise %d: name is required", index)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("exercise %d: name must be at most %d characters", index, MaxNameLength)
	}
	if !exerciseNamePattern.MatchString(name) {
		return fmt.Errorf("exercise %d: name can only contain letters, spaces, and hyphens", index)
	}
	if e.Sets < 0 || e.Sets > MaxSetsReps {
		return fmt.Errorf("exercise %d: sets must be between 0 and %d", index, MaxSetsReps)
	}
	if e.Reps < 0 || e.Reps > MaxSetsReps {
		return fmt.Errorf("exercise %d: reps must be between 0 and %d", index, MaxSetsReps)
	}
	if e.Weight < 0 || e.Weight > MaxExerciseWeight {
		return fmt.Errorf("exercise %d: weight must be between 0 and %d", index, MaxExerciseWeight)
	}
	return nil
}

// ValidateExercises checks the whole list, including its size bound.
func ValidateExercises(exercises []Exercise) error {
	if len(exercises) > MaxExercises {
		return fmt.Errorf("a workout can contain at most %d exercises", MaxExercises)
	}
	for i, ex := range exercises {
		if err := ex.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeExercises trims names in place. Numeric fields arrive already
// coerced by JSON binding; negatives are rejected by validation beforehand.
func NormalizeExercises(exercises []Exercise) []Exercise {
	out := make([]Exercise, len(exercises))
	for i, ex := range exercises {
		ex.Name = strings.TrimSpace(ex.Name)
		out[i] = ex
	}
	return out
}

// NormalizeExerciseName produces the case-insensitive grouping key used by
// the personal-records engine.
func NormalizeExerciseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PersonalRecord is the single best occurrence of one exercise across a
// user's completed sessions: highest weight, tie-broken by most recent
// completion. Display name keeps the casing of the winning row.
type PersonalRecord struct {
	Exercise    string             `bson:"exercise" json:"exercise"`
	Weight      float64            `bson:"weight" json:"weight"`
	Sets        int                `bson:"sets" json:"sets"`
	Reps        int                `bson:"reps" json:"reps"`
	WorkoutID   primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	WorkoutName string             `bson:"workoutName" json:"workoutName"`
	Date        time.Time          `bson:"date" json:"date"`
}

// ExerciseOccurrence is one drill-down row: a single appearance of an
// exercise inside one completed session.
type ExerciseOccurrence struct {
	Exercise    string             `bson:"exercise" json:"exercise"`
	Weight      float64            `bson:"weight" json:"weight"`
	Sets        int                `bson:"sets" json:"sets"`
	Reps        int                `bson:"reps" json:"reps"`
	WorkoutID   primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	WorkoutName string             `bson:"workoutName" json:"workoutName"`
	Date        time.Time          `bson:"date" json:"date"`
}
