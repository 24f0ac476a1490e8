package migration_1

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type History struct {
	InputArray datatypes.JSON
}

func (History) TableName() string {
	return "history"
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&History{}, "InputArray"); err != nil {
		return fmt.Errorf("error adding InputArray column: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&History{}, "InputArray"); err != nil {
		return fmt.Errorf("error dropping InputArray column: %w", err)
	}
	return nil
}
