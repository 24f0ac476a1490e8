package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// History is one saved classification. Seq orders the list; higher is newer.
type History struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        int64     `gorm:"not null;uniqueIndex"`
	ImageUri   string    `gorm:"not null"`
	Result     string    `gorm:"not null"`
	Date       string    `gorm:"size:32;not null"`
	InputArray datatypes.JSON
	CreatedAt  time.Time
}

func (History) TableName() string {
	return "history"
}
