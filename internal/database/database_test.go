package database

import (
	"context"
	"testing"
	"testing/fstest"

	"myblog/internal/config"
	"myblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)

	cfg.DBDriver = "sqlite"
	require.NoError(t, configurePool(db, cfg))
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		SQLitePath:   ":memory:",
		DBSchemaMode: SchemaModeHybrid,
	}

	db, err := Connect(cfg)
	require.NoError(t, err)

	for _, table := range []string{"users", "article_columns", "tags", "articles", "article_tags", "comments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	user := models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	article := models.Article{AuthorID: user.ID, Title: "t", Body: "b", Tags: []models.Tag{{Name: "go"}}}
	require.NoError(t, db.Create(&article).Error)

	var linked int64
	require.NoError(t, db.Table("article_tags").Where("article_id = ?", article.ID).Count(&linked).Error)
	assert.Equal(t, int64(1), linked)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBSSLMode: ""}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=blog sslmode=disable", PostgresDSN(cfg, "blog"))
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBDriver: "postgres", DBSchemaMode: "hybrid"}, true, false, false},
		{"empty mode defaults to hybrid", config.Config{Env: "development", DBDriver: "postgres"}, true, true, false},
		{"sql only", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "auto"}, false, true, false},
		{"auto prod refused", config.Config{Env: "prod", DBDriver: "postgres", DBSchemaMode: "auto"}, false, false, true},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"migrations/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"migrations/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"migrations/README.md":              {Data: []byte("ignored")},
	}

	list, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Version)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "SELECT -2;", list[1].DownScript)
	assert.Equal(t, "000002_second", list[1].String())
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing down", fstest.MapFS{
			"migrations/000001_first.up.sql": {Data: []byte("x")},
		}},
		{"bad prefix", fstest.MapFS{
			"migrations/abc_first.up.sql":   {Data: []byte("x")},
			"migrations/abc_first.down.sql": {Data: []byte("x")},
		}},
		{"duplicate version", fstest.MapFS{
			"migrations/000001_a.up.sql":   {Data: []byte("x")},
			"migrations/000001_a.down.sql": {Data: []byte("x")},
			"migrations/000001_b.up.sql":   {Data: []byte("x")},
			"migrations/000001_b.down.sql": {Data: []byte("x")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	list := GetMigrations()
	require.NotEmpty(t, list)
	assert.Equal(t, 1, list[0].Version)
	assert.Contains(t, list[0].UpScript, "CREATE TABLE IF NOT EXISTS articles")
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	pending, err := pendingMigrations([]int{1}, registered)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Version)

	_, err = pendingMigrations([]int{1, 7}, registered)
	assert.ErrorContains(t, err, "000007")
}

func TestPersistentModels_IncludesBlogModels(t *testing.T) {
	var sawArticle, sawColumn bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.Article:
			sawArticle = true
		case *models.Column:
			sawColumn = true
		}
	}
	assert.True(t, sawArticle)
	assert.True(t, sawColumn)
}

func TestGetSchemaStatus_SQLiteSkipsSQL(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	status, err := GetSchemaStatus(context.Background(), db, &config.Config{Env: "test", DBDriver: "sqlite"})
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
}
