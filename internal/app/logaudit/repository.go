package logaudit

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Service string
	Level   string
	Limit   int
	Offset  int
}

type Repository interface {
	Create(ctx context.Context, entry Entry) error
	// List returns the newest entries first.
	List(ctx context.Context, f Filter) ([]Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry Entry) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := r.db.WithContext(ctx).Model(&Entry{})
	if f.Service != "" {
		q = q.Where("service = ?", f.Service)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}

	var entries []Entry
	err := q.Order("timestamp DESC").Order("id DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&entries).Error
	return entries, err
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&Entry{}, "timestamp < ?", cutoff)
	return res.RowsAffected, res.Error
}
