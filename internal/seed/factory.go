// Package seed creates demo data for local development. Nothing here runs
// in the request path.
package seed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"myblog/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is given to every generated user.
const DefaultPassword = "Passw0rd!demo"

var (
	tagPool = []string{
		"go", "python", "django", "postgres", "redis", "docker",
		"testing", "devops", "frontend", "security", "performance", "markdown",
	}
	usernameUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// Options controls how much random data a Seeder creates.
type Options struct {
	Users              int
	Columns            int
	Articles           int
	CommentsPerArticle int
	Clean              bool
	// SkipBcrypt stores a cheap hash; demo logins still work through bcrypt
	// at MinCost.
	SkipBcrypt bool
	RandSeed   int64
}

// Factory builds domain entities and persists them.
type Factory struct {
	db     *gorm.DB
	faker  *gofakeit.Faker
	cost   int
	serial int
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	cost := bcrypt.DefaultCost
	if opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	return &Factory{db: db, faker: gofakeit.New(opts.RandSeed), cost: cost}
}

func (f *Factory) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), f.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (f *Factory) username() string {
	f.serial++
	base := usernameUnsafe.ReplaceAllString(strings.ToLower(f.faker.FirstName()), "")
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s_%d", base, f.serial)
}

// CreateUser persists a random user. Overrides run before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := f.hash(DefaultPassword)
	if err != nil {
		return nil, err
	}
	name := f.username()
	user := &models.User{
		Username: name,
		Email:    name + "@" + f.faker.DomainName(),
		Password: hashed,
		Phone:    f.faker.Numerify("1##########"),
		Bio:      f.faker.Sentence(12),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureUser creates a fixture user unless the username is already taken.
func (f *Factory) EnsureUser(fu FixtureUser) (*models.User, bool, error) {
	var existing models.User
	err := f.db.Where("username = ?", fu.Username).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	hashed, err := f.hash(fu.Password)
	if err != nil {
		return nil, false, err
	}
	user := &models.User{Username: fu.Username, Email: fu.Email, Password: hashed, IsAdmin: fu.Admin}
	if err := f.db.Create(user).Error; err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// CreateColumn persists a column; an empty title gets a random one.
func (f *Factory) CreateColumn(title string) (*models.Column, error) {
	if title == "" {
		word := f.faker.BuzzWord()
		title = strings.ToUpper(word[:1]) + word[1:]
	}
	col := &models.Column{Title: title}
	if err := f.db.Where(models.Column{Title: title}).FirstOrCreate(col).Error; err != nil {
		return nil, err
	}
	return col, nil
}

// Body returns a Markdown article body with headings for the TOC.
func (f *Factory) Body() string {
	var b strings.Builder
	sections := f.faker.Number(2, 4)
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&b, "## %s\n\n", f.faker.HipsterSentence(4))
		b.WriteString(f.faker.Paragraph(2, 3, 12, "\n\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "```go\nfmt.Println(%q)\n```\n", f.faker.Word())
	return b.String()
}

// CreateArticle persists a random article for author. col may be nil.
func (f *Factory) CreateArticle(author *models.User, col *models.Column, overrides ...func(*models.Article)) (*models.Article, error) {
	article := &models.Article{
		AuthorID:   author.ID,
		Title:      strings.TrimSuffix(f.faker.Sentence(6), "."),
		Body:       f.Body(),
		TotalViews: uint(f.faker.Number(0, 500)),
	}
	if col != nil {
		article.ColumnID = &col.ID
	}
	tags, err := f.tags(f.faker.Number(0, 3))
	if err != nil {
		return nil, err
	}
	article.Tags = tags
	for _, override := range overrides {
		override(article)
	}
	if err := f.db.Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

func (f *Factory) tags(n int) ([]models.Tag, error) {
	seen := make(map[string]bool, n)
	out := make([]models.Tag, 0, n)
	for len(out) < n {
		name := f.faker.RandomString(tagPool)
		if seen[name] {
			continue
		}
		seen[name] = true
		tag := models.Tag{Name: name}
		if err := f.db.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

// CreateComment persists a random comment by user on article.
func (f *Factory) CreateComment(article *models.Article, user *models.User) (*models.Comment, error) {
	c := &models.Comment{ArticleID: article.ID, UserID: user.ID, Body: f.faker.Sentence(f.faker.Number(4, 20))}
	if err := f.db.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Pick returns a random element index in [0, n).
func (f *Factory) Pick(n int) int {
	return f.faker.Number(0, n-1)
}

// Chance reports true with probability p in [0, 1].
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}
