// Command seed fills the database with demo users, columns and articles.
package main

import (
	"context"
	"flag"
	"log"

	"myblog/internal/config"
	"myblog/internal/database"
	"myblog/internal/middleware"
	"myblog/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of random users to create")
	numColumns := flag.Int("columns", 4, "Number of random columns to create")
	numArticles := flag.Int("articles", 50, "Number of articles to create")
	comments := flag.Int("comments", 3, "Comments per article")
	shouldClean := flag.Bool("clean", false, "Delete existing blog data first")
	fast := flag.Bool("fast", true, "Hash demo passwords at minimum bcrypt cost")
	fixturesPath := flag.String("fixtures", "", "YAML file with fixed columns and users")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := middleware.InitLogger(cfg.Env)

	fixtures, err := seed.LoadFixtures(*fixturesPath)
	if err != nil {
		log.Fatalf("Failed to load fixtures: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		Users:              *numUsers,
		Columns:            *numColumns,
		Articles:           *numArticles,
		CommentsPerArticle: *comments,
		Clean:              *shouldClean,
		SkipBcrypt:         *fast,
	}, logger)

	sum, err := s.Run(context.Background(), fixtures)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d columns, %d articles, %d comments (password for random users: %s)",
		sum.Users, sum.Columns, sum.Articles, sum.Comments, seed.DefaultPassword)
}
