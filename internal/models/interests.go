package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/eventscape/relevance/internal/datatypes"
)

// UserInterest is the stored interest vector of one user.
// Vector is nil until the first qualifying interaction; afterwards it has unit norm.
// Version increments on every write and guards the read-blend-write cycle.
type UserInterest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Vector    []float32  `json:"vector,omitempty"`
	Version   int64      `json:"version"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// HasVector reports whether the user has an initialized interest vector.
func (u *UserInterest) HasVector() bool {
	return u != nil && len(u.Vector) > 0
}

// InteractionSignal is one observed action that pulls a user's interest vector toward Text.
// Blank Text is a no-op rather than a validation failure.
type InteractionSignal struct {
	UserID uuid.UUID                 `json:"user_id" validate:"required"`
	Text   string                    `json:"text" validate:"max=20000,no_null_bytes"`
	Weight float64                   `json:"weight" validate:"gt=0,lte=1"`
	Kind   datatypes.InteractionKind `json:"kind" validate:"interaction_kind"`
}

// InterestMatch is a user whose interest vector is similar to a candidate's embedding.
type InterestMatch struct {
	UserID     uuid.UUID `json:"user_id"`
	Similarity float64   `json:"similarity"`
}
