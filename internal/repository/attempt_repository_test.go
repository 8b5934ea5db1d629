package repository

import (
	"testing"

	"github.com/stemsi/tryout-backend/internal/attempt"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestCheckWriteOnce(t *testing.T) {
	started := []model.SectionAttempt{{Number: 1, StartedAt: ptr(10)}, {Number: 2}}

	tests := []struct {
		name  string
		after []model.SectionAttempt
		want  error
	}{
		{"submit active section", []model.SectionAttempt{{Number: 1, StartedAt: ptr(10), SubmittedAt: ptr(20)}, {Number: 2}}, nil},
		{"start next section", []model.SectionAttempt{{Number: 1, StartedAt: ptr(10)}, {Number: 2, StartedAt: ptr(30)}}, nil},
		{"restart resets timer", []model.SectionAttempt{{Number: 1, StartedAt: ptr(15)}, {Number: 2}}, attempt.ErrSectionAlreadyStarted},
		{"clear start", []model.SectionAttempt{{Number: 1}, {Number: 2}}, attempt.ErrSectionAlreadyStarted},
		{"shape change", []model.SectionAttempt{{Number: 1, StartedAt: ptr(10)}}, attempt.ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkWriteOnce(started, tt.after)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("resubmit changes timestamp", func(t *testing.T) {
		before := []model.SectionAttempt{{Number: 1, StartedAt: ptr(10), SubmittedAt: ptr(20)}}
		after := []model.SectionAttempt{{Number: 1, StartedAt: ptr(10), SubmittedAt: ptr(25)}}
		assert.ErrorIs(t, checkWriteOnce(before, after), attempt.ErrSectionAlreadySubmitted)
	})
}

func TestCloneSectionsIsDeep(t *testing.T) {
	in := []model.SectionAttempt{{Number: 1, StartedAt: ptr(10)}}
	out := cloneSections(in)
	*in[0].StartedAt = 99
	assert.Equal(t, int64(10), *out[0].StartedAt)
}
