package query

import (
	"reflect"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/paging"
)

// processResult applies a projection to the mapped rows of a call. Values that
// are not entity rows (statistics, maps, raw results) are returned unchanged.
func processResult(result any, target reflect.Type) (any, error) {
	if target == nil || result == nil {
		return result, nil
	}
	switch r := result.(type) {
	case []any:
		return projectAll(r, target)
	case paging.Page[any]:
		content, err := projectAll(r.Content, target)
		if err != nil {
			return nil, err
		}
		r.Content = content
		return r, nil
	case paging.Slice[any]:
		content, err := projectAll(r.Content, target)
		if err != nil {
			return nil, err
		}
		r.Content = content
		return r, nil
	case []map[string]any:
		return r, nil
	default:
		return project(r, target)
	}
}

func projectAll(items []any, target reflect.Type) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := project(item, target)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// project copies the same-named exported fields of v into a new value of type
// target. Values already assignable to target are returned as they are.
func project(v any, target reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(target) {
		return v, nil
	}
	for src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return reflect.Zero(target).Interface(), nil
		}
		src = src.Elem()
	}
	if src.Type().AssignableTo(target) {
		return src.Interface(), nil
	}

	base := target
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if src.Kind() != reflect.Struct || base.Kind() != reflect.Struct {
		return nil, dataaccess.Newf(dataaccess.KindDataRetrieval, "project result", "cannot project %s onto %s", src.Type(), target)
	}

	dst := reflect.New(base).Elem()
	for i := 0; i < base.NumField(); i++ {
		f := base.Field(i)
		if !f.IsExported() {
			continue
		}
		sf, ok := src.Type().FieldByName(f.Name)
		if !ok || !sf.IsExported() {
			continue
		}
		val := src.FieldByIndex(sf.Index)
		switch {
		case val.Type().AssignableTo(f.Type):
			dst.Field(i).Set(val)
		case val.Kind() == f.Type.Kind() && val.Type().ConvertibleTo(f.Type):
			dst.Field(i).Set(val.Convert(f.Type))
		}
	}

	if target.Kind() == reflect.Pointer {
		return dst.Addr().Interface(), nil
	}
	return dst.Interface(), nil
}
