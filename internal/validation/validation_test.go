package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
)

func validSignal() models.InteractionSignal {
	return models.InteractionSignal{
		UserID: uuid.New(),
		Text:   "Go Meetup Go Meetup",
		Weight: 0.5,
		Kind:   datatypes.InteractionRegistration,
	}
}

func TestValidateStruct_InteractionSignal(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.InteractionSignal)
		wantField string
	}{
		{"valid", func(*models.InteractionSignal) {}, ""},
		{"blank text is allowed", func(s *models.InteractionSignal) { s.Text = "  " }, ""},
		{"weight one", func(s *models.InteractionSignal) { s.Weight = 1 }, ""},
		{"missing user", func(s *models.InteractionSignal) { s.UserID = uuid.Nil }, "UserID"},
		{"zero weight", func(s *models.InteractionSignal) { s.Weight = 0 }, "Weight"},
		{"weight above one", func(s *models.InteractionSignal) { s.Weight = 1.2 }, "Weight"},
		{"unknown kind", func(s *models.InteractionSignal) { s.Kind = 0 }, "Kind"},
		{"null byte", func(s *models.InteractionSignal) { s.Text = "a\x00b" }, "Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSignal()
			tt.mutate(&s)

			err := ValidateStruct(s)
			if tt.wantField == "" {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, apperrors.ErrValidation)

			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}
