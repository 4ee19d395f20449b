package services

// Page is one offset page of a fully fetched result.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns items[(page-1)*pageSize : page*pageSize]. A page past the
// end is empty but still reports the total.
func Paginate[T any](items []T, page, pageSize int) (Page[T], error) {
	errs := map[string]string{}
	if page < 1 {
		errs["page"] = "must be at least 1"
	}
	if pageSize < 1 {
		errs["pageSize"] = "must be at least 1"
	}
	if len(errs) > 0 {
		return Page[T]{}, &ValidationError{Fields: errs}
	}

	total := len(items)
	out := Page[T]{
		Items:      []T{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if page > out.TotalPages {
		return out, nil
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	out.Items = append(out.Items, items[start:end]...)
	return out, nil
}
