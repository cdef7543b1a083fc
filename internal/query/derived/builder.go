package derived

import (
	"reflect"
	"strings"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/ogm"
)

// FilterBuilder turns one part of a method name into filters.
type FilterBuilder interface {
	Build() []Filter
}

type baseBuilder struct {
	part       Part
	booleanOp  BooleanOperator
	entityType reflect.Type
}

func (b baseBuilder) isNegated() bool {
	return strings.HasPrefix(b.part.Type.String(), "NOT")
}

func (b baseBuilder) propertyName() string {
	return b.part.Property.Segment
}

func (b baseBuilder) filter(comparison ComparisonOperator, paramIndex int) Filter {
	f := Filter{
		PropertyName:    b.propertyName(),
		Comparison:      comparison,
		BooleanOperator: b.booleanOp,
		ParamIndex:      paramIndex,
		OwnerEntityType: b.entityType,
	}
	if b.part.IgnoreCase {
		f.Function = IgnoreCaseFn
	}
	b.setNestedAttributes(&f)
	return f
}

// setNestedAttributes points f at the leaf property when the part walks a
// relationship, e.g. genresName filters Genre.name through INTERESTED.
func (b baseBuilder) setNestedAttributes(f *Filter) {
	path := b.part.Property
	if !path.HasNext() {
		return
	}
	leaf := path.LeafProperty()
	f.OwnerEntityType = path.OwningType
	f.NestedPropertyType = path.Type
	f.NestedPropertyName = path.Segment
	f.PropertyName = leaf.Segment
	f.RelationshipType = path.Property.Rel.Type
	f.RelationshipDirection = path.Property.Rel.Direction
	if target, err := ogm.MetadataOf(path.Type); err == nil {
		f.NestedLabels = target.Labels
	}
}

type propertyComparisonBuilder struct{ baseBuilder }

func (b propertyComparisonBuilder) Build() []Filter {
	comparison := Equals
	switch b.part.Type {
	case GreaterThan, After:
		comparison = GreaterThanOp
	case GreaterThanEqual:
		comparison = GreaterThanEqOp
	case LessThan, Before:
		comparison = LessThanOp
	case LessThanEqual:
		comparison = LessThanEqOp
	}
	f := b.filter(comparison, b.part.ParamIndex)
	f.Negated = b.part.Type == NegatingSimpleProperty
	return []Filter{f}
}

type betweenBuilder struct{ baseBuilder }

func (b betweenBuilder) Build() []Filter {
	lower := b.filter(GreaterThanEqOp, b.part.ParamIndex)
	upper := b.filter(LessThanEqOp, b.part.ParamIndex+1)
	upper.BooleanOperator = And
	return []Filter{lower, upper}
}

type isNullBuilder struct{ baseBuilder }

func (b isNullBuilder) Build() []Filter {
	f := b.filter(IsNullOp, -1)
	f.Negated = b.part.Type == IsNotNull
	return []Filter{f}
}

type existsBuilder struct{ baseBuilder }

func (b existsBuilder) Build() []Filter {
	return []Filter{b.filter(ExistsOp, -1)}
}

type booleanBuilder struct{ baseBuilder }

func (b booleanBuilder) Build() []Filter {
	if b.part.Type == False {
		return []Filter{b.filter(IsFalseOp, -1)}
	}
	return []Filter{b.filter(IsTrueOp, -1)}
}

type inCollectionBuilder struct{ baseBuilder }

func (b inCollectionBuilder) Build() []Filter {
	f := b.filter(InOp, b.part.ParamIndex)
	f.Negated = b.part.Type == NotIn
	return []Filter{f}
}

type stringComparisonBuilder struct{ baseBuilder }

func (b stringComparisonBuilder) Build() []Filter {
	var comparison ComparisonOperator
	switch b.part.Type {
	case Like, NotLike:
		comparison = LikeOp
	case StartingWith:
		comparison = StartingWithOp
	case EndingWith:
		comparison = EndingWithOp
	default:
		comparison = ContainingOp
	}
	f := b.filter(comparison, b.part.ParamIndex)
	f.Negated = b.isNegated()
	if comparison == ContainingOp && isCollection(b.part.Property.LeafProperty().Type) {
		f.Function = CollectionFn
	}
	return []Filter{f}
}

type regexBuilder struct{ baseBuilder }

func (b regexBuilder) Build() []Filter {
	return []Filter{b.filter(MatchesOp, b.part.ParamIndex)}
}

// NewFilterBuilder picks the builder for the part's comparison type.
func NewFilterBuilder(part Part, booleanOp BooleanOperator, entityType reflect.Type) (FilterBuilder, error) {
	base := baseBuilder{part: part, booleanOp: booleanOp, entityType: entityType}
	switch part.Type {
	case SimpleProperty, NegatingSimpleProperty, GreaterThan, GreaterThanEqual,
		LessThan, LessThanEqual, Before, After:
		return propertyComparisonBuilder{base}, nil
	case Between:
		return betweenBuilder{base}, nil
	case IsNull, IsNotNull:
		return isNullBuilder{base}, nil
	case Exists:
		return existsBuilder{base}, nil
	case True, False:
		return booleanBuilder{base}, nil
	case In, NotIn:
		return inCollectionBuilder{base}, nil
	case Like, NotLike, StartingWith, EndingWith, Containing, NotContaining:
		return stringComparisonBuilder{base}, nil
	case Regex:
		return regexBuilder{base}, nil
	}
	return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "derive query", "unsupported keyword %s", part.Type)
}

// BuildFilters flattens the tree into filters. The first filter of every Or
// group after the first is joined with OR, everything else with AND.
func BuildFilters(tree *PartTree) ([]Filter, error) {
	var filters []Filter
	for i, and := range tree.OrParts {
		for j, part := range and {
			op := And
			switch {
			case i == 0 && j == 0:
				op = None
			case j == 0:
				op = Or
			}
			builder, err := NewFilterBuilder(part, op, tree.Entity.Type)
			if err != nil {
				return nil, err
			}
			filters = append(filters, builder.Build()...)
		}
	}
	return filters, nil
}

func isCollection(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8
}
