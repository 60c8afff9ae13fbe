package seed

import (
	"context"
	"fmt"
	"log/slog"

	"myblog/internal/models"

	"gorm.io/gorm"
)

// Summary counts what a run created.
type Summary struct {
	Users    int `json:"users"`
	Columns  int `json:"columns"`
	Articles int `json:"articles"`
	Comments int `json:"comments"`
}

// Seeder creates fixtures followed by random content.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	logger  *slog.Logger
}

func NewSeeder(db *gorm.DB, opts Options, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts), logger: logger}
}

// cleanOrder respects foreign keys.
var cleanOrder = []string{"article_tags", "comments", "articles", "tags", "article_columns", "users"}

// ClearAll deletes every blog row.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range cleanOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Run applies fixtures then adds random users, columns, articles and comments.
func (s *Seeder) Run(ctx context.Context, fixtures *Fixtures) (*Summary, error) {
	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "cleared existing data")
	}

	sum := &Summary{}
	var users []*models.User
	var columns []*models.Column

	if fixtures != nil {
		for _, fu := range fixtures.Users {
			u, created, err := s.factory.EnsureUser(fu)
			if err != nil {
				return sum, fmt.Errorf("fixture user %s: %w", fu.Username, err)
			}
			if created {
				sum.Users++
			}
			users = append(users, u)
		}
		for _, title := range fixtures.Columns {
			col, err := s.factory.CreateColumn(title)
			if err != nil {
				return sum, fmt.Errorf("fixture column %s: %w", title, err)
			}
			sum.Columns++
			columns = append(columns, col)
		}
	}

	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
		sum.Users++
	}
	for i := 0; i < s.opts.Columns; i++ {
		col, err := s.factory.CreateColumn("")
		if err != nil {
			return sum, fmt.Errorf("create column: %w", err)
		}
		columns = append(columns, col)
		sum.Columns++
	}
	if len(users) == 0 {
		if s.opts.Articles > 0 {
			return sum, fmt.Errorf("articles need at least one user")
		}
		return sum, nil
	}

	for i := 0; i < s.opts.Articles; i++ {
		author := users[s.factory.Pick(len(users))]
		var col *models.Column
		if len(columns) > 0 && s.factory.Chance(0.8) {
			col = columns[s.factory.Pick(len(columns))]
		}
		article, err := s.factory.CreateArticle(author, col)
		if err != nil {
			return sum, fmt.Errorf("create article: %w", err)
		}
		sum.Articles++

		for j := 0; j < s.opts.CommentsPerArticle; j++ {
			if _, err := s.factory.CreateComment(article, users[s.factory.Pick(len(users))]); err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
	}

	s.logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", sum.Users),
		slog.Int("columns", sum.Columns),
		slog.Int("articles", sum.Articles),
		slog.Int("comments", sum.Comments),
	)
	return sum, nil
}
