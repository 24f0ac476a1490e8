package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"soil-backend/internal/database"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrWriteFailure = errors.New("history write failed")
	ErrReadFailure  = errors.New("history read failed")
)

type Store interface {
	Append(ctx context.Context, record Record) error

	// List returns every record, most recent first.
	List(ctx context.Context) ([]Record, error)

	// Recent returns at most limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// DBStore keeps history in the database. Appends are serialized so a
// record's sequence number always exceeds every earlier one.
type DBStore struct {
	mu sync.Mutex
	db *gorm.DB
}

var _ Store = (*DBStore)(nil)

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Append(ctx context.Context, record Record) error {
	var inputs datatypes.JSON
	if record.Inputs != nil {
		data, err := json.Marshal(record.Inputs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}
		inputs = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var last int64
		if err := txn.Model(&database.History{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
			return err
		}

		return txn.Create(&database.History{
			Id:         record.ID,
			Seq:        last + 1,
			ImageUri:   record.ImageUri,
			Result:     record.Result,
			Date:       record.Date,
			InputArray: inputs,
		}).Error
	})
	if err != nil {
		slog.Error("error saving history record", "record_id", record.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	slog.Info("history record saved", "record_id", record.ID, "result", record.Result)
	return nil
}

func (s *DBStore) List(ctx context.Context) ([]Record, error) {
	return s.Recent(ctx, 0)
}

// Recent treats a non-positive limit as no limit.
func (s *DBStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []database.History
	if err := s.db.WithContext(ctx).Order("seq DESC").Limit(limit).Find(&rows).Error; err != nil {
		slog.Error("error listing history", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := Record{
			ID:       row.Id,
			ImageUri: row.ImageUri,
			Result:   row.Result,
			Date:     row.Date,
		}
		if len(row.InputArray) > 0 {
			if err := json.Unmarshal(row.InputArray, &record.Inputs); err != nil {
				return nil, fmt.Errorf("%w: record %s: %w", ErrReadFailure, row.Id, err)
			}
		}
		records = append(records, record)
	}
	return records, nil
}
