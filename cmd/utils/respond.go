package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const maxPageSize = 100

func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return Validation("invalid request body")
	}
	return nil
}

// PathID parses a numeric route variable.
func PathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, Validation("invalid %s", name)
	}
	return uint(id), nil
}

type Page struct {
	Page     int
	PageSize int
}

// PageFromQuery reads page and page_size, clamping both.
func PageFromQuery(r *http.Request) Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return Page{Page: page, PageSize: pageSize}
}

func (p Page) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize)
}

// Body builds the paginated listing envelope under key.
func (p Page) Body(key string, items any, total int64) map[string]any {
	return map[string]any{
		key:           items,
		"total":       total,
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total_pages": (total + int64(p.PageSize) - 1) / int64(p.PageSize),
	}
}
