package paging

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Page is one slice of a paginated read. Total counts every row matching the query.
type Page[T any] struct {
	Rows  []T `json:"rows"`
	Total int `json:"total"`
}

func Clamp(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}
