package option

import (
	"time"

	"promowheel/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed. It has the shape of a
// gorm scope so it can be passed to (*gorm.DB).Scopes directly.
type QueryOption func(db *gorm.DB) *gorm.DB

// LockingUpdate adds SELECT ... FOR UPDATE on dialects that support it.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithOrder(order string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}

func WithPreload(relation string, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Preload(relation, args...)
	}
}

func WithWhere(query any, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// WithLimit bounds the number of rows; n <= 0 leaves the query unbounded.
func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// ApplyPage applies offset pagination from a normalised pagination.Page.
func ApplyPage(p pagination.Page) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		p = p.Normalize()
		return db.Offset(p.Offset()).Limit(p.Limit)
	}
}

// ApplyPagination applies keyset pagination ordered by created_at, id descending.
// One extra row is fetched so callers can build pagination.PageInfo.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 {
			limit = pagination.DefaultLimit
		}
		if limit > pagination.MaxLimit {
			limit = pagination.MaxLimit
		}

		if p.Cursor != "" {
			if c, err := pagination.DecodeCursor(p.Cursor); err == nil {
				if at, err := time.Parse(time.RFC3339Nano, c.CreatedAt); err == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, c.ID)
				}
			}
		}

		return db.Order("created_at DESC").Order("id DESC").Limit(limit + 1)
	}
}
