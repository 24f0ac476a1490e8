package migration_0

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type History struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq       int64     `gorm:"not null;uniqueIndex"`
	ImageUri  string    `gorm:"not null"`
	Result    string    `gorm:"not null"`
	Date      string    `gorm:"size:32;not null"`
	CreatedAt time.Time
}

func (History) TableName() string {
	return "history"
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&History{})
}
