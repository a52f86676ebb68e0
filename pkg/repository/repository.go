package repository

import (
	"context"

	"github.com/alimia7/achatons/pkg/db/option"
)

// Store is a typed gorm accessor bound to one handle, usually the current
// transaction. Get returns nil, nil when no row matches.
type Store[T any] interface {
	Insert(ctx context.Context, row *T) error
	Get(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error)
	List(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error)
	Patch(ctx context.Context, id any, fields map[string]any) error
	PluckInt64(ctx context.Context, column string, opts ...option.QueryOption) ([]int64, error)
}
