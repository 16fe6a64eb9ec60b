package shared

// ═══════════════════════════════════════════════════════════════════════════
// Rating (оценка встречи)
// ═══════════════════════════════════════════════════════════════════════════

// Rating - оценка встречи от 1 до 5.
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

func (r Rating) IsValid() bool { return r >= MinRating && r <= MaxRating }

// NewRating проверяет диапазон.
func NewRating(value int) (Rating, error) {
	r := Rating(value)
	if !r.IsValid() {
		return 0, ErrInvalidRating
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination - страница списка пар. Page считается с 1.
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination подставляет значения по умолчанию и ограничивает размер.
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: page, PageSize: pageSize}
	if p.Page < 1 {
		p.Page = 1
	}
	p.PageSize = p.Limit()
	return p
}

// Limit - размер страницы для LIMIT.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return p.PageSize
}

// Offset - смещение для OFFSET.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}
