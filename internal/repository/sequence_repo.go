package repository

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

// CounterRepository durably increments a (kind, year) bucket counter and
// returns the new value. The increment must be atomic across processes.
type CounterRepository interface {
	Next(ctx context.Context, kind domain.NumberKind, year int) (int64, error)
}

type GormCounterRepo struct {
	db *gorm.DB
}

func NewGormCounterRepo(db *gorm.DB) *GormCounterRepo {
	return &GormCounterRepo{db: db}
}

// Next performs an upsert-increment in a single statement, so concurrent
// callers on the same bucket serialize on the row lock and each observe a
// distinct value. Inside a TxManager transaction the increment rolls back
// with the rest of the work, leaving no gap behind.
func (r *GormCounterRepo) Next(ctx context.Context, kind domain.NumberKind, year int) (int64, error) {
	var lastValue int64
	err := conn(ctx, r.db).Raw(`
		INSERT INTO number_sequences (kind, year, last_value, updated_at)
		VALUES (?, ?, 1, now())
		ON CONFLICT (kind, year)
		DO UPDATE SET last_value = number_sequences.last_value + 1, updated_at = now()
		RETURNING last_value`,
		kind.String(), year,
	).Scan(&lastValue).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%d: %w", kind, year, err)
	}
	if lastValue < 1 {
		return 0, fmt.Errorf("sequence %s/%d returned non-positive value %d", kind, year, lastValue)
	}
	return lastValue, nil
}
