// Package query executes repository query methods: annotated Cypher or
// Cypher derived from a method name, with parameter binding, sorting, paging
// and mapping of the rows onto the method's declared return shape.
package query

import (
	"fmt"
	"reflect"

	"github.com/vanshika/graphrepo/internal/dataaccess"
)

// ReturnKind is the shape a query method returns.
type ReturnKind int

const (
	ReturnNothing ReturnKind = iota
	ReturnEntity
	ReturnCollection
	ReturnPage
	ReturnSlice
	// ReturnStatistics returns the update counters of the statement.
	ReturnStatistics
	// ReturnResult returns the raw result, bypassing projections.
	ReturnResult
	// ReturnMaps returns every row as a column to value map.
	ReturnMaps
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnNothing:
		return "nothing"
	case ReturnEntity:
		return "entity"
	case ReturnCollection:
		return "collection"
	case ReturnPage:
		return "page"
	case ReturnSlice:
		return "slice"
	case ReturnStatistics:
		return "statistics"
	case ReturnResult:
		return "result"
	case ReturnMaps:
		return "maps"
	default:
		return fmt.Sprintf("ReturnKind(%d)", int(k))
	}
}

// Role tells the executor how to treat an argument.
type Role int

const (
	RoleValue Role = iota
	RolePageable
	RoleSort
	RoleProjection
)

// Param declares one method argument. Value params without a name are bound
// by their position ("0", "1", ...).
type Param struct {
	Name string
	Role Role
}

// Named declares a value parameter bound as $name.
func Named(name string) Param { return Param{Name: name, Role: RoleValue} }

// Positional declares a value parameter bound by its index.
func Positional() Param { return Param{Role: RoleValue} }

// PageableParam declares a paging.Pageable argument.
func PageableParam() Param { return Param{Role: RolePageable} }

// SortParam declares a paging.Sort argument.
func SortParam() Param { return Param{Role: RoleSort} }

// ProjectionParam declares a Projection argument selecting the result type at
// call time.
func ProjectionParam() Param { return Param{Role: RoleProjection} }

// IsNamed reports whether the parameter binds by name.
func (p Param) IsNamed() bool { return p.Name != "" }

// Method describes a repository query method.
type Method struct {
	Name    string
	Returns ReturnKind
	// Entity is the type rows are mapped onto for entity, collection, page and
	// slice methods.
	Entity     reflect.Type
	Query      string
	CountQuery string
	Params     []Param
	// Projection, when set, is the type results are converted to.
	Projection reflect.Type
	// Write runs the method in a write transaction even when its query has
	// no updating clause, e.g. a CALL to a writing procedure.
	Write bool
}

// IsPageQuery reports whether the method returns a page.
func (m Method) IsPageQuery() bool { return m.Returns == ReturnPage }

// IsSliceQuery reports whether the method returns a slice.
func (m Method) IsSliceQuery() bool { return m.Returns == ReturnSlice }

// IsCollectionQuery reports whether the method returns several rows.
func (m Method) IsCollectionQuery() bool {
	switch m.Returns {
	case ReturnCollection, ReturnPage, ReturnSlice, ReturnMaps:
		return true
	}
	return false
}

// ReturnsStatistics reports whether the method returns update counters or the
// raw result rather than mapped rows.
func (m Method) ReturnsStatistics() bool {
	return m.Returns == ReturnStatistics || m.Returns == ReturnResult
}

// ConcreteType is the element type rows are mapped onto.
func (m Method) ConcreteType() reflect.Type {
	if m.Returns == ReturnMaps {
		return reflect.TypeFor[map[string]any]()
	}
	return m.Entity
}

// Validate checks the declaration is usable.
func (m Method) Validate() error {
	op := "query method " + m.Name
	if m.Name == "" {
		return dataaccess.New(dataaccess.KindInvalidUsage, "query method", "name is required")
	}
	if m.Query == "" {
		return dataaccess.New(dataaccess.KindInvalidUsage, op, "query is required")
	}
	switch m.Returns {
	case ReturnEntity, ReturnCollection, ReturnPage, ReturnSlice:
		if m.Entity == nil {
			return dataaccess.Newf(dataaccess.KindInvalidUsage, op, "%s methods need an entity type", m.Returns)
		}
	case ReturnNothing, ReturnStatistics, ReturnResult, ReturnMaps:
	default:
		return dataaccess.Newf(dataaccess.KindInvalidUsage, op, "unknown return kind %d", int(m.Returns))
	}
	if m.CountQuery != "" && !m.IsPageQuery() {
		return dataaccess.New(dataaccess.KindInvalidUsage, op, "count query is only used by page methods")
	}

	seen := map[Role]bool{}
	names := map[string]bool{}
	for _, p := range m.Params {
		if p.Role != RoleValue {
			if seen[p.Role] {
				return dataaccess.Newf(dataaccess.KindInvalidUsage, op, "duplicate %s parameter", roleName(p.Role))
			}
			seen[p.Role] = true
			continue
		}
		if p.IsNamed() {
			if names[p.Name] {
				return dataaccess.Newf(dataaccess.KindInvalidUsage, op, "duplicate parameter %q", p.Name)
			}
			names[p.Name] = true
		}
	}
	return nil
}

func roleName(r Role) string {
	switch r {
	case RolePageable:
		return "pageable"
	case RoleSort:
		return "sort"
	case RoleProjection:
		return "projection"
	default:
		return "value"
	}
}
