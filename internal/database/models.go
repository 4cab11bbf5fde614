package database

import "time"

// User 表示系统中的账号信息。创建后不再修改。
type User struct {
	ID           uint      `gorm:"primaryKey"`
	FullName     string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// Application 表示用户投递的一条求职记录，只归属一个用户。
// 日期字段以 YYYY-MM-DD 文本存储；可选字段为空时存 NULL。
type Application struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        uint      `gorm:"index;not null"`
	User          User      `gorm:"constraint:OnDelete:CASCADE"`
	CompanyName   string    `gorm:"size:255;not null"`
	Role          string    `gorm:"size:255;not null"`
	Status        string    `gorm:"size:32;not null;index"`
	AppliedDate   string    `gorm:"size:10;not null"`
	NextRoundDate *string   `gorm:"size:10"`
	Notes         *string   `gorm:"type:text"`
	ResumeLink    *string   `gorm:"size:1024"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false;index"`
}
