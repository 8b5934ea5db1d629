package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/cache"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/database"
	"github.com/stemsi/tryout-backend/internal/logger"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// fixture is a test definition with its questions inline, so one file seeds a complete test.
type fixture struct {
	Title    string           `json:"title"`
	Kind     model.TestKind   `json:"kind"`
	Subject  string           `json:"subject"`
	Chapter  string           `json:"chapter"`
	IsActive bool             `json:"is_active"`
	Sections []fixtureSection `json:"sections"`
}

type fixtureSection struct {
	Name             string                        `json:"name"`
	DurationMinutes  int                           `json:"duration_minutes"`
	MarksPerQuestion int                           `json:"marks_per_question"`
	Questions        []model.CreateQuestionRequest `json:"questions"`
}

func main() {
	var (
		path     string
		students int
		password string
	)
	flag.StringVar(&path, "file", "", "Path to a JSON test fixture")
	flag.IntVar(&students, "students", 0, "Number of student accounts to create (user1..userN)")
	flag.StringVar(&password, "password", "tryout123", "Password for seeded students")
	flag.Parse()

	if path == "" && students == 0 {
		fmt.Println("Usage: seed-test -file fixture.json [-students N] [-password P]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if students > 0 {
		seedStudents(ctx, repository.NewUserRepository(pool), students, password, cfg.BcryptCost, log)
	}
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read fixture")
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		log.Fatal().Err(err).Msg("Invalid fixture JSON")
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	tests := service.NewTestService(
		repository.NewTestRepository(pool),
		repository.NewQuestionRepository(pool),
		cache.NewTestCache(rdb),
		log,
	)

	req := model.CreateTestRequest{
		Title:    fx.Title,
		Kind:     fx.Kind,
		Subject:  fx.Subject,
		Chapter:  fx.Chapter,
		IsActive: fx.IsActive,
	}
	for i, sec := range fx.Sections {
		questions, err := tests.CreateQuestions(ctx, model.CreateQuestionsRequest{Questions: sec.Questions})
		if err != nil {
			log.Fatal().Err(err).Int("section", i+1).Msg("Failed to create questions")
		}
		s := model.CreateSectionRequest{
			Name:             sec.Name,
			DurationMinutes:  sec.DurationMinutes,
			MarksPerQuestion: sec.MarksPerQuestion,
		}
		for _, q := range questions {
			s.QuestionIDs = append(s.QuestionIDs, q.ID)
		}
		req.Sections = append(req.Sections, s)
		fmt.Printf("Section %d: %d questions created\n", i+1, len(questions))
	}

	def, err := tests.CreateTest(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}
	fmt.Printf("\nSeed completed! Test '%s' created with ID: %s (max score %d)\n", def.Title, def.ID, def.MaxScore())
}

func seedStudents(ctx context.Context, users *repository.UserRepository, n int, password string, cost int, log zerolog.Logger) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	batch := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, model.User{
			Username:     fmt.Sprintf("user%d", i+1),
			Name:         fmt.Sprintf("Student %d", i+1),
			PasswordHash: string(hash),
		})
	}

	written, err := users.UpsertStudents(ctx, batch)
	if err != nil {
		log.Fatal().Err(err).Int("written", written).Msg("Failed to seed students")
	}
	fmt.Printf("Seeded %d/%d students\n", written, n)
}
