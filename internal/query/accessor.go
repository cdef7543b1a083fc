package query

import (
	"reflect"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/paging"
)

// Projection selects the result type of a call. Pass it for a method declared
// with ProjectionParam.
type Projection struct {
	Type reflect.Type
}

// ProjectAs returns a projection onto T.
func ProjectAs[T any]() Projection {
	return Projection{Type: reflect.TypeFor[T]()}
}

// Accessor gives typed access to the special arguments of a call.
type Accessor struct {
	params []Param
	args   []any
}

// NewAccessor pairs args with the method's parameter declarations.
func NewAccessor(m Method, args []any) (Accessor, error) {
	if len(args) != len(m.Params) {
		return Accessor{}, dataaccess.Newf(dataaccess.KindInvalidUsage, "query method "+m.Name,
			"expected %d arguments, got %d", len(m.Params), len(args))
	}
	for i, p := range m.Params {
		if args[i] == nil {
			continue
		}
		var ok bool
		switch p.Role {
		case RolePageable:
			_, ok = args[i].(paging.Pageable)
		case RoleSort:
			_, ok = args[i].(paging.Sort)
		case RoleProjection:
			_, ok = args[i].(Projection)
		default:
			ok = true
		}
		if !ok {
			return Accessor{}, dataaccess.Newf(dataaccess.KindInvalidUsage, "query method "+m.Name,
				"argument %d must be a %s, got %T", i, roleName(p.Role), args[i])
		}
	}
	return Accessor{params: m.Params, args: args}, nil
}

// Pageable returns the pageable argument. ok is false when the method has none
// or it is unpaged.
func (a Accessor) Pageable() (paging.Pageable, bool) {
	if v, ok := a.find(RolePageable).(paging.Pageable); ok && v.IsPaged() {
		return v, true
	}
	return paging.Unpaged, false
}

// Sort returns the sort argument, or the unsorted Sort.
func (a Accessor) Sort() paging.Sort {
	if v, ok := a.find(RoleSort).(paging.Sort); ok {
		return v
	}
	return paging.Unsorted
}

// Projection returns the dynamic projection type, if one was passed.
func (a Accessor) Projection() (reflect.Type, bool) {
	if v, ok := a.find(RoleProjection).(Projection); ok && v.Type != nil {
		return v.Type, true
	}
	return nil, false
}

// Values returns the value arguments in declaration order.
func (a Accessor) Values() []any {
	var out []any
	for i, p := range a.params {
		if p.Role == RoleValue {
			out = append(out, a.args[i])
		}
	}
	return out
}

func (a Accessor) find(role Role) any {
	for i, p := range a.params {
		if p.Role == role {
			return a.args[i]
		}
	}
	return nil
}
