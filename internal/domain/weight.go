package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeightEntry is one body-weight measurement, keyed to a UTC-midnight day.
// One entry per user per day; the repository enforces this with a unique
// (userSub, date) index.
type WeightEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserSub   string             `bson:"userSub" json:"userSub"`
	Date      time.Time          `bson:"date" json:"date"` // UTC midnight
	Weight    float64            `bson:"weight" json:"weight"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
