package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile holds per-user settings and body stats. One document per userSub.
type Profile struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserSub string             `bson:"userSub" json:"userSub"`
	Name    string             `bson:"name,omitempty" json:"name,omitempty"`
	Weight  float64            `bson:"weight,omitempty" json:"weight,omitempty"`
	Gender  string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Goal    string             `bson:"goal,omitempty" json:"goal,omitempty"`
	Age     int                `bson:"age,omitempty" json:"age,omitempty"`
	Height  float64            `bson:"height,omitempty" json:"height,omitempty"`
	// LoginDates records the days the user opened the app, one per day.
	LoginDates       []time.Time `bson:"loginDates,omitempty" json:"loginDates,omitempty"`
	ProfileCompleted bool        `bson:"profileCompleted" json:"profileCompleted"`
	CreatedAt        time.Time   `bson:"createdAt" json:"createdAt"`
}

// ProfileUpdate carries the whitelisted updatable profile fields. Nil means
// "leave unchanged".
type ProfileUpdate struct {
	Name             *string
	Weight           *float64
	Gender           *string
	Goal             *string
	Age              *int
	Height           *float64
	ProfileCompleted *bool
}
