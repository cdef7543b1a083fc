// Package paging holds the pagination and sorting descriptors accepted by
// repository query methods, and the Page and Slice windows they return.
package paging

import (
	"fmt"
	"strings"
)

// Direction is the ordering direction of a sort property.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case; empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC", "ASCENDING":
		return Asc, nil
	case "DESC", "DESCENDING":
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}

// Order sorts by a single property.
type Order struct {
	Property  string
	Direction Direction
}

// String renders the order as a Cypher ORDER BY item.
func (o Order) String() string {
	dir := o.Direction
	if dir == "" {
		dir = Asc
	}
	return o.Property + " " + string(dir)
}

// Sort is an ordered list of property orders. The zero value is unsorted.
type Sort struct {
	Orders []Order
}

// Unsorted is the empty sort.
var Unsorted = Sort{}

// By sorts ascending by each property in turn.
func By(properties ...string) Sort {
	return ByDirection(Asc, properties...)
}

// ByDirection sorts by each property in turn using dir.
func ByDirection(dir Direction, properties ...string) Sort {
	orders := make([]Order, 0, len(properties))
	for _, p := range properties {
		if p = strings.TrimSpace(p); p != "" {
			orders = append(orders, Order{Property: p, Direction: dir})
		}
	}
	return Sort{Orders: orders}
}

// AscBy sorts ascending by property.
func AscBy(property string) Sort { return ByDirection(Asc, property) }

// DescBy sorts descending by property.
func DescBy(property string) Sort { return ByDirection(Desc, property) }

// And appends the orders of other.
func (s Sort) And(other Sort) Sort {
	orders := make([]Order, 0, len(s.Orders)+len(other.Orders))
	orders = append(orders, s.Orders...)
	orders = append(orders, other.Orders...)
	return Sort{Orders: orders}
}

// IsSorted reports whether at least one order is present.
func (s Sort) IsSorted() bool {
	return len(s.Orders) > 0
}

// Cypher renders "p1 ASC, p2 DESC". An unsorted Sort renders as "".
func (s Sort) Cypher() string {
	items := make([]string, 0, len(s.Orders))
	for _, o := range s.Orders {
		items = append(items, o.String())
	}
	return strings.Join(items, ", ")
}

// ParseSort reads "prop,dir;prop2,dir2" (as used by the HTTP API and CLI).
func ParseSort(expr string) (Sort, error) {
	var s Sort
	for _, item := range strings.Split(expr, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		prop, dirStr, _ := strings.Cut(item, ",")
		prop = strings.TrimSpace(prop)
		if prop == "" {
			return Sort{}, fmt.Errorf("invalid sort item %q", item)
		}
		dir, err := ParseDirection(dirStr)
		if err != nil {
			return Sort{}, err
		}
		s.Orders = append(s.Orders, Order{Property: prop, Direction: dir})
	}
	return s, nil
}
