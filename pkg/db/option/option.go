package option

import (
	"strconv"
	"strings"

	"github.com/alimia7/achatons/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination pages by descending id. It fetches one extra row so the
// caller can tell whether another page exists.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if token := strings.TrimSpace(page.PageToken); token != "" {
			if cursor, err := pagination.DecodeCursor(token); err == nil {
				if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
					db = db.Where("id < ?", id)
				}
			}
		}
		return db.Order("id desc").Limit(page.Size() + 1)
	})
}

type QuerySortBy struct {
	SortBy string
	Desc   bool
	Allow  map[string]bool
}

// WithSortBy orders by SortBy when it is allowed and is a no-op otherwise.
func WithSortBy(sort QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.SortBy)
		if column == "" || !sort.Allow[column] {
			return db
		}
		if sort.Desc {
			return db.Order(column + " desc")
		}
		return db.Order(column + " asc")
	})
}

// Condition adds a raw where clause.
func Condition(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func Limit(n int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

// ForUpdate locks the selected rows until the transaction ends. sqlite has
// no row locks and already serializes writers, so it is skipped there.
func ForUpdate() QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
			return db
		}
		return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	})
}

// OrderByID orders ascending by primary key.
func OrderByID() QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	})
}
