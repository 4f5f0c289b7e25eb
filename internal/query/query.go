// Package query pages, filters and sorts an in-memory snapshot of a
// collection. It never touches the store: callers load the snapshot inside a
// read transaction and hand it over.
package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/garnizeh/talentflow/internal/apperr"
)

type SortKey string

const (
	SortNatural   SortKey = "order"
	SortTitleAsc  SortKey = "title_asc"
	SortTitleDesc SortKey = "title_desc"
	SortDateAsc   SortKey = "date_asc"
	SortDateDesc  SortKey = "date_desc"
)

// ParseSort maps a request value to a SortKey. Empty means natural order.
func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortNatural, nil
	case SortNatural, SortTitleAsc, SortTitleDesc, SortDateAsc, SortDateDesc:
		return k, nil
	}
	return "", apperr.InvalidInput("unknown sort key %q", s)
}

// Spec describes how a record type is searched and sorted.
type Spec[T any] struct {
	// SearchFields returns the values matched against the search string.
	SearchFields func(T) []string
	Title        func(T) string
	Date         func(T) time.Time
	// Natural is the default ordering; nil keeps the snapshot order.
	Natural func(a, b T) int
	// Filter is an optional equality filter; nil keeps every record.
	Filter func(T) bool
}

type Params struct {
	Search   string
	Sort     SortKey
	Page     int
	PageSize int
}

type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Run applies search, filter, a stable sort and pagination to items. The
// input slice is not modified.
func Run[T any](items []T, spec Spec[T], p Params) (*Page[T], error) {
	if p.PageSize <= 0 {
		return nil, apperr.InvalidInput("pageSize must be positive, got %d", p.PageSize)
	}
	if p.Page < 1 {
		return nil, apperr.InvalidInput("page must be at least 1, got %d", p.Page)
	}
	sortKey := p.Sort
	if sortKey == "" {
		sortKey = SortNatural
	}
	if _, err := ParseSort(string(sortKey)); err != nil {
		return nil, err
	}

	needle := fold(p.Search)
	matched := make([]T, 0, len(items))
	for _, it := range items {
		if needle != "" && (spec.SearchFields == nil || !matches(spec.SearchFields(it), needle)) {
			continue
		}
		if spec.Filter != nil && !spec.Filter(it) {
			continue
		}
		matched = append(matched, it)
	}

	if cmp := comparator(spec, sortKey); cmp != nil {
		slices.SortStableFunc(matched, cmp)
	}

	total := len(matched)
	page := &Page[T]{
		Data:       []T{},
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: total / p.PageSize,
	}
	if total%p.PageSize != 0 {
		page.TotalPages++
	}

	// page <= TotalPages keeps the offset below total, so nothing overflows
	if p.Page > page.TotalPages {
		return page, nil
	}
	start := (p.Page - 1) * p.PageSize
	end := start + min(p.PageSize, total-start)
	page.Data = append(page.Data, matched[start:end]...)

	return page, nil
}

func comparator[T any](spec Spec[T], key SortKey) func(a, b T) int {
	switch key {
	case SortTitleAsc, SortTitleDesc:
		if spec.Title == nil {
			return nil
		}
		// collators keep internal buffers and are not safe to share
		col := collate.New(language.English)
		sign := 1
		if key == SortTitleDesc {
			sign = -1
		}
		return func(a, b T) int {
			return sign * col.CompareString(spec.Title(a), spec.Title(b))
		}
	case SortDateAsc:
		if spec.Date == nil {
			return nil
		}
		return func(a, b T) int { return spec.Date(a).Compare(spec.Date(b)) }
	case SortDateDesc:
		if spec.Date == nil {
			return nil
		}
		return func(a, b T) int { return spec.Date(b).Compare(spec.Date(a)) }
	}
	return spec.Natural
}

func matches(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(fold(f), needle) {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
