package query

import (
	"context"
	"reflect"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/paging"
)

// One runs an entity method. found is false when no row matched.
func One[T any](ctx context.Context, q *GraphRepositoryQuery, args ...any) (T, bool, error) {
	var zero T
	res, err := q.Execute(ctx, args...)
	if err != nil || res == nil {
		return zero, false, err
	}
	v, err := as[T](q, res)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// List runs a collection method.
func List[T any](ctx context.Context, q *GraphRepositoryQuery, args ...any) ([]T, error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return nil, err
	}
	items, ok := res.([]any)
	if !ok {
		return nil, mismatch(q, res, "[]any")
	}
	return asAll[T](q, items)
}

// PageOf runs a page method.
func PageOf[T any](ctx context.Context, q *GraphRepositoryQuery, args ...any) (paging.Page[T], error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return paging.Page[T]{}, err
	}
	page, ok := res.(paging.Page[any])
	if !ok {
		return paging.Page[T]{}, mismatch(q, res, "paging.Page")
	}
	content, err := asAll[T](q, page.Content)
	if err != nil {
		return paging.Page[T]{}, err
	}
	return paging.Page[T]{Content: content, Pageable: page.Pageable, Total: page.Total}, nil
}

// SliceOf runs a slice method.
func SliceOf[T any](ctx context.Context, q *GraphRepositoryQuery, args ...any) (paging.Slice[T], error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return paging.Slice[T]{}, err
	}
	slice, ok := res.(paging.Slice[any])
	if !ok {
		return paging.Slice[T]{}, mismatch(q, res, "paging.Slice")
	}
	content, err := asAll[T](q, slice.Content)
	if err != nil {
		return paging.Slice[T]{}, err
	}
	return paging.Slice[T]{Content: content, Pageable: slice.Pageable, HasNextPage: slice.HasNextPage}, nil
}

// Stats runs a statistics method.
func Stats(ctx context.Context, q *GraphRepositoryQuery, args ...any) (graph.Stats, error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return graph.Stats{}, err
	}
	stats, ok := res.(graph.Stats)
	if !ok {
		return graph.Stats{}, mismatch(q, res, "graph.Stats")
	}
	return stats, nil
}

// Raw runs a result method.
func Raw(ctx context.Context, q *GraphRepositoryQuery, args ...any) (graph.Result, error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return graph.Result{}, err
	}
	out, ok := res.(graph.Result)
	if !ok {
		return graph.Result{}, mismatch(q, res, "graph.Result")
	}
	return out, nil
}

// Maps runs a maps method.
func Maps(ctx context.Context, q *GraphRepositoryQuery, args ...any) ([]map[string]any, error) {
	res, err := q.Execute(ctx, args...)
	if err != nil {
		return nil, err
	}
	rows, ok := res.([]map[string]any)
	if !ok {
		return nil, mismatch(q, res, "[]map[string]any")
	}
	return rows, nil
}

// Exec runs a method and discards what it returns.
func Exec(ctx context.Context, q *GraphRepositoryQuery, args ...any) error {
	_, err := q.Execute(ctx, args...)
	return err
}

func asAll[T any](q *GraphRepositoryQuery, items []any) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := as[T](q, item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// as converts a mapped row to T, taking the address of or dereferencing the
// row when T and the mapped type differ only by a pointer.
func as[T any](q *GraphRepositoryQuery, v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	if v == nil {
		return zero, nil
	}
	want := reflect.TypeFor[T]()
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type() == want:
		return rv.Elem().Interface().(T), nil
	case want.Kind() == reflect.Pointer && rv.Type() == want.Elem():
		ptr := reflect.New(want.Elem())
		ptr.Elem().Set(rv)
		return ptr.Interface().(T), nil
	}
	return zero, mismatch(q, v, want.String())
}

func mismatch(q *GraphRepositoryQuery, got any, want string) error {
	return dataaccess.Newf(dataaccess.KindInvalidUsage, "query method "+q.method.Name,
		"%s method returned %T, not %s", q.method.Returns, got, want)
}
