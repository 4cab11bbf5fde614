package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 创建或补齐 users 与 applications 表。可重复执行，进程启动时调用一次。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Application{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
