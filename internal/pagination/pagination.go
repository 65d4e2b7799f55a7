package pagination

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gdg-garage/sputnik-ledger/internal/apperr"
	"gorm.io/gorm"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type SortField struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// Query is what a caller asks for. Zero values fall back to the Config
// defaults.
type Query struct {
	Page   int
	Limit  int
	SortBy []SortField
	Filter map[string]string
}

// Config is the per-endpoint whitelist. FilterableColumns maps a public
// filter key to a column expression; Columns optionally does the same for
// sortable names that are ambiguous in a join.
type Config struct {
	SortableColumns   []string
	Columns           map[string]string
	DefaultSortBy     []SortField
	FilterableColumns map[string]string
	DefaultLimit      int
	MaxLimit          int
	// TieBreaker is appended to every ORDER BY so page membership is stable
	// when sort keys collide.
	TieBreaker string
}

type Meta struct {
	ItemsPerPage int               `json:"items_per_page"`
	TotalItems   int64             `json:"total_items"`
	CurrentPage  int               `json:"current_page"`
	TotalPages   int               `json:"total_pages"`
	SortBy       []SortField       `json:"sort_by"`
	Filter       map[string]string `json:"filter,omitempty"`
}

type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// ParseSort reads "column:ASC,other:DESC".
func ParseSort(raw string) ([]SortField, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []SortField
	for _, part := range strings.Split(raw, ",") {
		column, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		direction := Direction(strings.ToUpper(dir))
		if direction == "" {
			direction = Asc
		}
		if direction != Asc && direction != Desc {
			return nil, apperr.Invalid("invalid sort direction %q", dir)
		}
		out = append(out, SortField{Column: column, Direction: direction})
	}
	return out, nil
}

// Normalize applies defaults and rejects sort or filter keys the config
// does not allow.
func (q Query) Normalize(cfg Config) (Query, error) {
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 20
	}
	if q.Limit > 0 {
		limit = q.Limit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	sortBy := q.SortBy
	if len(sortBy) == 0 {
		sortBy = cfg.DefaultSortBy
	}
	for _, s := range sortBy {
		if !slices.Contains(cfg.SortableColumns, s.Column) {
			return Query{}, apperr.Invalid("column %q is not sortable", s.Column)
		}
	}

	for key := range q.Filter {
		if _, ok := cfg.FilterableColumns[key]; !ok {
			return Query{}, apperr.Invalid("column %q is not filterable", key)
		}
	}

	return Query{Page: page, Limit: limit, SortBy: sortBy, Filter: q.Filter}, nil
}

// Paginate counts and fetches one page of T from db, which carries the base
// conditions of the listing. scopes apply to the row fetch only, which is
// where preloads belong.
func Paginate[T any](db *gorm.DB, q Query, cfg Config, scopes ...func(*gorm.DB) *gorm.DB) (*Page[T], error) {
	q, err := q.Normalize(cfg)
	if err != nil {
		return nil, err
	}

	base := db
	if base.Statement.Model == nil && base.Statement.Table == "" {
		base = base.Model(new(T))
	}
	for key, value := range q.Filter {
		base = base.Where(fmt.Sprintf("%s = ?", cfg.FilterableColumns[key]), value)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	rows := make([]T, 0, q.Limit)
	find := base.Scopes(scopes...)
	for _, s := range q.SortBy {
		column := s.Column
		if expr, ok := cfg.Columns[column]; ok {
			column = expr
		}
		find = find.Order(fmt.Sprintf("%s %s", column, s.Direction))
	}
	if cfg.TieBreaker != "" {
		find = find.Order(cfg.TieBreaker)
	}
	if err := find.Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &Page[T]{
		Data: rows,
		Meta: Meta{
			ItemsPerPage: q.Limit,
			TotalItems:   total,
			CurrentPage:  q.Page,
			TotalPages:   totalPages,
			SortBy:       q.SortBy,
			Filter:       q.Filter,
		},
	}, nil
}

// Offset is the number of rows preceding the page.
func (m Meta) Offset() int {
	return (m.CurrentPage - 1) * m.ItemsPerPage
}

// Map transforms the rows of a fetched page. Meta is carried over untouched,
// so a post-fetch step can never change totals or page membership.
func Map[T, U any](p *Page[T], fn func(i int, row T) U) *Page[U] {
	out := make([]U, len(p.Data))
	for i, row := range p.Data {
		out[i] = fn(i, row)
	}
	return &Page[U]{Data: out, Meta: p.Meta}
}
