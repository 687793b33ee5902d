package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/clickhook/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkExists is returned when a code is already taken.
	ErrLinkExists = errors.New("link already exists")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// mutable columns on PATCH; code and created_at never change
var linkUpdateColumns = []string{"url", "title", "disabled", "expires_at", "updated_at"}

type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	List(ctx context.Context, limit, offset int) ([]model.Link, error)
	Update(ctx context.Context, link *model.Link) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a LinkRepository over the links table.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

// Create inserts link. A taken code is reported as ErrLinkExists without touching the existing row.
func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(link)
	if res.Error != nil {
		return linkError("create", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLinkExists
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	link := &model.Link{}
	if err := r.db.WithContext(ctx).Take(link, "code = ?", code).Error; err != nil {
		return nil, linkError("get", err)
	}
	return link, nil
}

// List pages through links newest first. limit is clamped to [1, 100].
func (r *linkRepository) List(ctx context.Context, limit, offset int) ([]model.Link, error) {
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	offset = max(offset, 0)

	links := make([]model.Link, 0, limit)
	err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Limit(limit).
		Offset(offset).
		Find(&links).Error
	if err != nil {
		return nil, linkError("list", err)
	}
	return links, nil
}

// Update writes the mutable columns of link, zero values included, and reloads it.
func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Link{}).
			Where("code = ?", link.Code).
			Select(linkUpdateColumns).
			Updates(link)
		if res.Error != nil {
			return linkError("update", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return linkError("reload", tx.Take(link, "code = ?", link.Code).Error)
	})
}

func linkError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrLinkNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrLinkExists
	default:
		return fmt.Errorf("repository: %s link: %w", op, err)
	}
}
