package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/event"
	"github.com/stemsi/tryout-backend/internal/leaderboard"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/retry"
	"github.com/stemsi/tryout-backend/internal/scoring"
)

var errMiss = apperror.NotFound("CACHE_MISS", "cache miss")

// ─── Clock ───────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += int64(d)
	c.mu.Unlock()
}

// ─── Stores ──────────────────────────────────────────────────────

type fakeUsers struct {
	byID map[int]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeSessions struct {
	mu   sync.Mutex
	jtis map[int]string
}

func newFakeSessions() *fakeSessions { return &fakeSessions{jtis: map[int]string{}} }

func (f *fakeSessions) Put(_ context.Context, userID int, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jtis[userID] = jti
	return nil
}

func (f *fakeSessions) Get(_ context.Context, userID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jti, ok := f.jtis[userID]
	if !ok {
		return "", errMiss
	}
	return jti, nil
}

func (f *fakeSessions) Delete(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jtis, userID)
	return nil
}

type fakeTests struct {
	mu   sync.Mutex
	defs map[uuid.UUID]*model.TestDefinition
}

func newFakeTests() *fakeTests { return &fakeTests{defs: map[uuid.UUID]*model.TestDefinition{}} }

func (f *fakeTests) Create(_ context.Context, t *model.TestDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	f.defs[t.ID] = &cp
	return nil
}

func (f *fakeTests) GetByID(_ context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return nil, repository.ErrTestNotFound
	}
	cp := *def
	return &cp, nil
}

func (f *fakeTests) List(_ context.Context, activeOnly bool) ([]model.TestDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestDefinition
	for _, d := range f.defs {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeTests) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return repository.ErrTestNotFound
	}
	def.IsActive = active
	return nil
}

type fakeQuestions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Question
}

func newFakeQuestions() *fakeQuestions { return &fakeQuestions{byID: map[uuid.UUID]model.Question{}} }

func (f *fakeQuestions) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := f.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) CreateBatch(_ context.Context, questions []model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range questions {
		questions[i].ID = uuid.New()
		f.byID[questions[i].ID] = questions[i]
	}
	return nil
}

// nopTestCache always misses.
type nopTestCache struct{}

func (nopTestCache) GetDefinition(context.Context, uuid.UUID) (*model.TestDefinition, error) {
	return nil, errMiss
}
func (nopTestCache) SetDefinition(context.Context, *model.TestDefinition) error { return nil }
func (nopTestCache) GetKey(context.Context, uuid.UUID) (scoring.Key, error)    { return nil, errMiss }
func (nopTestCache) SetKey(context.Context, uuid.UUID, scoring.Key) error      { return nil }
func (nopTestCache) GetPaper(context.Context, uuid.UUID, int) (*model.TestPaper, error) {
	return nil, errMiss
}
func (nopTestCache) SetPaper(context.Context, *model.TestPaper) error { return nil }
func (nopTestCache) Invalidate(context.Context, uuid.UUID) error      { return nil }

type fakeAttempts struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*model.Attempt
	drafts   map[uuid.UUID]map[int][]model.Answer
	names    map[int]string
	failNext []error
	tests    *fakeTests
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{
		byID:   map[uuid.UUID]*model.Attempt{},
		drafts: map[uuid.UUID]map[int][]model.Answer{},
		names:  map[int]string{},
	}
}

func (f *fakeAttempts) popFailure() error {
	if len(f.failNext) == 0 {
		return nil
	}
	err := f.failNext[0]
	f.failNext = f.failNext[1:]
	return err
}

func (f *fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure(); err != nil {
		return err
	}
	f.byID[a.ID] = cloneAttempt(a)
	return nil
}

func (f *fakeAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (f *fakeAttempts) Update(_ context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure(); err != nil {
		return nil, err
	}
	cur, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrAttemptNotFound
	}
	next := cloneAttempt(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	for i := range next.Sections {
		if next.Sections[i].Submitted() {
			delete(f.drafts[id], next.Sections[i].Number)
		}
	}
	f.byID[id] = next
	return cloneAttempt(next), nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID int, testID *uuid.UUID) ([]model.AttemptSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AttemptSummary{}
	for _, a := range f.byID {
		if a.UserID != userID || (testID != nil && a.TestID != *testID) {
			continue
		}
		out = append(out, model.AttemptSummary{
			ID: a.ID, TestID: a.TestID, CreatedAt: a.CreatedAt, CompletedAt: a.CompletedAt,
			TotalScore: a.TotalScore, TotalTimeTaken: a.TotalTimeTaken, IsCompleted: a.IsCompleted,
		})
	}
	return out, nil
}

func (f *fakeAttempts) ListCompletedByTest(_ context.Context, testID uuid.UUID) ([]leaderboard.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var attempts []model.Attempt
	for _, a := range f.byID {
		if a.TestID == testID {
			attempts = append(attempts, *a)
		}
	}
	return leaderboard.FromAttempts(attempts, f.names), nil
}

func (f *fakeAttempts) ListExpiredSections(ctx context.Context, now int64, limit int) ([]model.OpenSection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.OpenSection
	for _, a := range f.byID {
		sec := a.ActiveSection()
		if sec == nil || len(out) >= limit {
			continue
		}
		def, err := f.tests.GetByID(ctx, a.TestID)
		if err != nil {
			return nil, err
		}
		spec, _ := def.Section(sec.Number)
		if *sec.StartedAt+int64(spec.Duration()) > now {
			continue
		}
		out = append(out, model.OpenSection{
			AttemptID: a.ID, TestID: a.TestID, UserID: a.UserID, SectionNumber: sec.Number,
			StartedAt: *sec.StartedAt, DurationMinutes: spec.DurationMinutes,
		})
	}
	return out, nil
}

func (f *fakeAttempts) SaveDrafts(_ context.Context, drafts []model.DraftAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range drafts {
		if f.drafts[d.AttemptID] == nil {
			f.drafts[d.AttemptID] = map[int][]model.Answer{}
		}
		f.drafts[d.AttemptID][d.SectionNumber] = append(f.drafts[d.AttemptID][d.SectionNumber],
			model.Answer{QuestionID: d.QuestionID, SelectedIndex: d.SelectedIndex})
	}
	return nil
}

func (f *fakeAttempts) DraftAnswers(_ context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.drafts[attemptID][section]), nil
}

func cloneAttempt(a *model.Attempt) *model.Attempt {
	cp := *a
	cp.Sections = make([]model.SectionAttempt, len(a.Sections))
	for i, s := range a.Sections {
		s.Answers = slices.Clone(s.Answers)
		cp.Sections[i] = s
	}
	return &cp
}

// ─── Redis stand-ins ─────────────────────────────────────────────

type fakeBuffer struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[int][]model.Answer
	fail    error
}

func newFakeBuffer() *fakeBuffer { return &fakeBuffer{answers: map[uuid.UUID]map[int][]model.Answer{}} }

func (f *fakeBuffer) Save(_ context.Context, d model.DraftAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.answers[d.AttemptID] == nil {
		f.answers[d.AttemptID] = map[int][]model.Answer{}
	}
	f.answers[d.AttemptID][d.SectionNumber] = append(f.answers[d.AttemptID][d.SectionNumber],
		model.Answer{QuestionID: d.QuestionID, SelectedIndex: d.SelectedIndex})
	return nil
}

func (f *fakeBuffer) Load(_ context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return slices.Clone(f.answers[attemptID][section]), nil
}

func (f *fakeBuffer) Clear(_ context.Context, attemptID uuid.UUID, section int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.answers[attemptID], section)
	return nil
}

type fakeBoards struct {
	mu        sync.Mutex
	entries   map[uuid.UUID][]model.LeaderboardEntry
	refreshes []uuid.UUID
}

func newFakeBoards() *fakeBoards {
	return &fakeBoards{entries: map[uuid.UUID][]model.LeaderboardEntry{}}
}

func (f *fakeBoards) Get(_ context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[testID]
	if !ok {
		return nil, errMiss
	}
	return e, nil
}

func (f *fakeBoards) Set(_ context.Context, testID uuid.UUID, entries []model.LeaderboardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[testID] = entries
	return nil
}

func (f *fakeBoards) Invalidate(_ context.Context, testIDs ...uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range testIDs {
		delete(f.entries, id)
	}
	return nil
}

func (f *fakeBoards) EnqueueRefresh(_ context.Context, testID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, testID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ─── Harness ─────────────────────────────────────────────────────

const t0 = int64(1_700_000_000_000_000_000)

type harness struct {
	clock     *fakeClock
	tests     *fakeTests
	questions *fakeQuestions
	attempts  *fakeAttempts
	buffer    *fakeBuffer
	boards    *fakeBoards
	events    *recordingPublisher
	testSvc   *TestService
	svc       *AttemptService
}

func newHarness() *harness {
	h := &harness{
		clock:     &fakeClock{now: t0},
		tests:     newFakeTests(),
		questions: newFakeQuestions(),
		attempts:  newFakeAttempts(),
		buffer:    newFakeBuffer(),
		boards:    newFakeBoards(),
		events:    &recordingPublisher{},
	}
	h.attempts.tests = h.tests
	h.testSvc = NewTestService(h.tests, h.questions, nopTestCache{}, zerolog.Nop())
	h.svc = NewAttemptService(AttemptDeps{
		Attempts:    h.attempts,
		Tests:       h.testSvc,
		Buffer:      h.buffer,
		Leaderboard: h.boards,
		Events:      h.events,
		Metrics:     metrics.New(),
		Clock:       h.clock.Now,
		Retry:       retry.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond},
		Log:         zerolog.Nop(),
	})
	return h
}

// seedTest stores questions whose correct index is always 0 and a test over them.
func (h *harness) seedTest(kind model.TestKind, perSection ...int) *model.TestDefinition {
	def := &model.TestDefinition{ID: uuid.New(), Title: "Mock " + string(kind), Kind: kind, IsActive: true}
	for i, n := range perSection {
		sec := model.Section{Number: i + 1, Name: "Section", DurationMinutes: 60, MarksPerQuestion: 4}
		for j := 0; j < n; j++ {
			text := "question"
			q := model.Question{
				ID:           uuid.New(),
				Subject:      "physics",
				Text:         &text,
				Options:      []model.Option{{Text: &text}, {Text: &text}, {Text: &text}, {Text: &text}},
				CorrectIndex: 0,
			}
			h.questions.byID[q.ID] = q
			sec.QuestionIDs = append(sec.QuestionIDs, q.ID)
		}
		def.Sections = append(def.Sections, sec)
	}
	h.tests.defs[def.ID] = def
	return def
}
