package claimstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNoOutcome = errors.New("no auth outcome for session")

type OutcomeRepository interface {
	Save(ctx context.Context, outcome AuthOutcome) error
	// Consume returns the outcome stored for key and deletes it.
	Consume(ctx context.Context, key string) (AuthOutcome, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type outcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) OutcomeRepository {
	return &outcomeRepository{db: db}
}

// Save replaces any earlier outcome for the same session.
func (r *outcomeRepository) Save(ctx context.Context, outcome AuthOutcome) error {
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&outcome).Error
}

func (r *outcomeRepository) Consume(ctx context.Context, key string) (AuthOutcome, error) {
	var outcome AuthOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&outcome, "session_key = ?", key).Error; err != nil {
			return err
		}
		return tx.Delete(&AuthOutcome{}, "session_key = ?", key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AuthOutcome{}, ErrNoOutcome
	}
	return outcome, err
}

func (r *outcomeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&AuthOutcome{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}
