package database

import (
	"fmt"

	"stock-trader/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Session{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 用户名不区分大小写唯一；gorm 的 tag 索引做不了表达式索引，直接建
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",
	).Error; err != nil {
		return fmt.Errorf("create username index: %w", err)
	}
	return nil
}
