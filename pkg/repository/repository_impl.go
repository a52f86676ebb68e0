package repository

import (
	"context"
	"errors"

	"github.com/alimia7/achatons/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func On[T any](db *gorm.DB) Store[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Insert(ctx context.Context, row *T) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *store[T]) Get(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := s.scope(ctx, match, opts).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *store[T]) List(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error) {
	rows := []*T{}
	if err := s.scope(ctx, match, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Patch writes fields by column name so zero values and nil pointers are
// persisted too.
func (s *store[T]) Patch(ctx context.Context, id any, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields).Error
}

func (s *store[T]) PluckInt64(ctx context.Context, column string, opts ...option.QueryOption) ([]int64, error) {
	values := []int64{}
	stmt := s.scope(ctx, nil, opts).Model(new(T))
	if err := stmt.Pluck(column, &values).Error; err != nil {
		return nil, err
	}
	return values, nil
}

func (s *store[T]) scope(ctx context.Context, match *T, opts []option.QueryOption) *gorm.DB {
	stmt := s.db.WithContext(ctx)
	if match != nil {
		stmt = stmt.Where(match)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
