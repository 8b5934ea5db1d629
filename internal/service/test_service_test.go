package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSection(ids ...uuid.UUID) model.CreateSectionRequest {
	return model.CreateSectionRequest{Name: "Section", DurationMinutes: 30, QuestionIDs: ids, MarksPerQuestion: 4}
}

func TestTestService_CreateTestValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	existing := h.seedTest(model.TestKindChapterWise, 3)
	q := existing.Sections[0].QuestionIDs

	tests := []struct {
		name    string
		req     model.CreateTestRequest
		wantErr error
	}{
		{
			name: "full syllabus with two sections",
			req: model.CreateTestRequest{
				Title: "Full", Kind: model.TestKindFullSyllabus,
				Sections: []model.CreateSectionRequest{createSection(q[0]), createSection(q[1], q[2])},
			},
		},
		{
			name: "full syllabus with one section",
			req: model.CreateTestRequest{
				Title: "Full", Kind: model.TestKindFullSyllabus,
				Sections: []model.CreateSectionRequest{createSection(q[0])},
			},
			wantErr: ErrInvalidTest,
		},
		{
			name: "chapter wise with two sections",
			req: model.CreateTestRequest{
				Title: "Chapter", Kind: model.TestKindChapterWise,
				Sections: []model.CreateSectionRequest{createSection(q[0]), createSection(q[1])},
			},
			wantErr: ErrInvalidTest,
		},
		{
			name: "question repeated across sections",
			req: model.CreateTestRequest{
				Title: "Full", Kind: model.TestKindFullSyllabus,
				Sections: []model.CreateSectionRequest{createSection(q[0]), createSection(q[0])},
			},
			wantErr: ErrInvalidTest,
		},
		{
			name: "unknown question",
			req: model.CreateTestRequest{
				Title: "Chapter", Kind: model.TestKindChapterWise,
				Sections: []model.CreateSectionRequest{createSection(uuid.New())},
			},
			wantErr: ErrInvalidTest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := h.testSvc.CreateTest(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, def.ID)
			assert.Equal(t, 2, def.Sections[1].Number)
		})
	}
}

func TestTestService_CreateQuestionsRejectsBadKey(t *testing.T) {
	h := newHarness()
	text := "x"
	_, err := h.testSvc.CreateQuestions(context.Background(), model.CreateQuestionsRequest{
		Questions: []model.CreateQuestionRequest{{
			Subject: "math", ClassLevel: "12",
			Options:      []model.Option{{Text: &text}, {Text: &text}},
			CorrectIndex: 2,
		}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuestion)
	assert.Empty(t, h.questions.byID)
}

func TestTestService_PaperHidesAnswersAndInactiveTests(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 2, 1)

	paper, err := h.testSvc.Paper(ctx, def.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, paper.SectionNumber)
	require.Len(t, paper.Questions, 1)
	assert.Equal(t, def.Sections[1].QuestionIDs[0], paper.Questions[0].ID)

	_, err = h.testSvc.Paper(ctx, def.ID, 3)
	assert.ErrorIs(t, err, ErrSectionNotInTest)

	_, err = h.testSvc.SetActive(ctx, def.ID, false)
	require.NoError(t, err)
	_, err = h.testSvc.Paper(ctx, def.ID, 1)
	assert.ErrorIs(t, err, ErrTestNotFound)
}
