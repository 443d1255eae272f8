package utils

// PageResponse is the envelope for every list endpoint. NextPageToken is omitted on the
// last page.
type PageResponse[T any] struct {
	Items         []T   `json:"items"`
	NextPageToken int64 `json:"nextPageToken,omitempty"`
	PageSize      int   `json:"pageSize"`
	ItemCount     int64 `json:"itemCount"`
}

func PageOf[T any](items []T, total int64, page PageRequest) *PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &PageResponse[T]{
		Items:         items,
		NextPageToken: page.NextToken(total),
		PageSize:      page.Size,
		ItemCount:     total,
	}
}
