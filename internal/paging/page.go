package paging

import "fmt"

// Pageable requests a zero-based page of Size elements.
type Pageable struct {
	Page int
	Size int
	Sort Sort
}

// Unpaged is the zero Pageable: no window is applied.
var Unpaged = Pageable{}

// NewPageable validates page and size.
func NewPageable(page, size int, sort Sort) (Pageable, error) {
	if page < 0 {
		return Pageable{}, fmt.Errorf("page index must not be less than zero, got %d", page)
	}
	if size < 1 {
		return Pageable{}, fmt.Errorf("page size must not be less than one, got %d", size)
	}
	return Pageable{Page: page, Size: size, Sort: sort}, nil
}

// PageRequest is NewPageable for callers that know the values are valid.
func PageRequest(page, size int, sort ...Order) Pageable {
	return Pageable{Page: page, Size: size, Sort: Sort{Orders: sort}}
}

// IsPaged reports whether a window was requested.
func (p Pageable) IsPaged() bool {
	return p.Size > 0
}

// Offset is the number of elements before this page.
func (p Pageable) Offset() int {
	return p.Page * p.Size
}

// Next returns the following page.
func (p Pageable) Next() Pageable {
	return Pageable{Page: p.Page + 1, Size: p.Size, Sort: p.Sort}
}

// Previous returns the preceding page, or the first page.
func (p Pageable) Previous() Pageable {
	if p.Page == 0 {
		return p
	}
	return Pageable{Page: p.Page - 1, Size: p.Size, Sort: p.Sort}
}

// First returns page zero with the same size and sort.
func (p Pageable) First() Pageable {
	return Pageable{Page: 0, Size: p.Size, Sort: p.Sort}
}

// HasPrevious reports whether there is a page before this one.
func (p Pageable) HasPrevious() bool {
	return p.Page > 0
}

// Page is a window of results together with the total element count.
type Page[T any] struct {
	Content  []T
	Pageable Pageable
	Total    int64
}

// NewPage builds a page. When the window reaches past total the total is
// recomputed from the content, so a stale count cannot claim phantom pages.
func NewPage[T any](content []T, pageable Pageable, total int64) Page[T] {
	if pageable.IsPaged() {
		if len(content) > 0 && int64(pageable.Offset()+pageable.Size) > total {
			total = int64(pageable.Offset() + len(content))
		}
	} else {
		total = int64(len(content))
	}
	return Page[T]{Content: content, Pageable: pageable, Total: total}
}

// PageOf wraps items into a single unpaged page.
func PageOf[T any](items []T) Page[T] {
	return Page[T]{Content: items, Pageable: Unpaged, Total: int64(len(items))}
}

// NumberOfElements is the size of the content.
func (p Page[T]) NumberOfElements() int { return len(p.Content) }

// TotalPages is the number of pages available for the page size.
func (p Page[T]) TotalPages() int {
	if !p.Pageable.IsPaged() {
		return 1
	}
	size := int64(p.Pageable.Size)
	return int((p.Total + size - 1) / size)
}

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool {
	return p.Pageable.IsPaged() && p.Pageable.Page+1 < p.TotalPages()
}

// HasPrevious reports whether a preceding page exists.
func (p Page[T]) HasPrevious() bool { return p.Pageable.HasPrevious() }

// IsFirst reports whether this is the first page.
func (p Page[T]) IsFirst() bool { return !p.HasPrevious() }

// IsLast reports whether this is the last page.
func (p Page[T]) IsLast() bool { return !p.HasNext() }

// Slice is a window of results that only knows whether more follow.
type Slice[T any] struct {
	Content     []T
	Pageable    Pageable
	HasNextPage bool
}

// NewSlice builds a slice window.
func NewSlice[T any](content []T, pageable Pageable, hasNext bool) Slice[T] {
	return Slice[T]{Content: content, Pageable: pageable, HasNextPage: hasNext}
}

// SliceOf wraps items into a single unpaged slice.
func SliceOf[T any](items []T) Slice[T] {
	return Slice[T]{Content: items, Pageable: Unpaged}
}

func (s Slice[T]) NumberOfElements() int { return len(s.Content) }
func (s Slice[T]) HasNext() bool         { return s.HasNextPage }
func (s Slice[T]) HasPrevious() bool     { return s.Pageable.HasPrevious() }
func (s Slice[T]) IsFirst() bool         { return !s.HasPrevious() }
func (s Slice[T]) IsLast() bool          { return !s.HasNextPage }

// MapPage converts the content of a page.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return Page[U]{Content: out, Pageable: p.Pageable, Total: p.Total}
}

// MapSlice converts the content of a slice.
func MapSlice[T, U any](s Slice[T], fn func(T) U) Slice[U] {
	out := make([]U, len(s.Content))
	for i, v := range s.Content {
		out[i] = fn(v)
	}
	return Slice[U]{Content: out, Pageable: s.Pageable, HasNextPage: s.HasNextPage}
}
