package database

import "myblog/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Column{},
		&models.Tag{},
		&models.Article{},
		&models.Comment{},
	}
}
