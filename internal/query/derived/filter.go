package derived

import (
	"reflect"

	"github.com/vanshika/graphrepo/internal/ogm"
)

// ComparisonOperator is how a filter compares a property with its parameter.
type ComparisonOperator string

const (
	Equals          ComparisonOperator = "EQUALS"
	GreaterThanOp   ComparisonOperator = "GREATER_THAN"
	GreaterThanEqOp ComparisonOperator = "GREATER_THAN_EQUAL"
	LessThanOp      ComparisonOperator = "LESS_THAN"
	LessThanEqOp    ComparisonOperator = "LESS_THAN_EQUAL"
	LikeOp          ComparisonOperator = "LIKE"
	StartingWithOp  ComparisonOperator = "STARTING_WITH"
	EndingWithOp    ComparisonOperator = "ENDING_WITH"
	ContainingOp    ComparisonOperator = "CONTAINING"
	InOp            ComparisonOperator = "IN"
	IsNullOp        ComparisonOperator = "IS_NULL"
	ExistsOp        ComparisonOperator = "EXISTS"
	IsTrueOp        ComparisonOperator = "IS_TRUE"
	IsFalseOp       ComparisonOperator = "IS_FALSE"
	MatchesOp       ComparisonOperator = "MATCHES"
)

// BooleanOperator joins a filter to the one before it.
type BooleanOperator string

const (
	None BooleanOperator = "NONE"
	And  BooleanOperator = "AND"
	Or   BooleanOperator = "OR"
)

// Function modifies how both sides of a comparison are rendered.
type Function string

const (
	NoFunction Function = ""
	// IgnoreCaseFn lower-cases property and parameter.
	IgnoreCaseFn Function = "IGNORE_CASE"
	// CollectionFn treats the property as a list, so containment tests
	// membership rather than substrings.
	CollectionFn Function = "COLLECTION"
)

// Filter is one structured criterion of a derived query.
type Filter struct {
	PropertyName    string
	Comparison      ComparisonOperator
	BooleanOperator BooleanOperator
	Negated         bool
	// ParamIndex is the positional parameter compared against, -1 when the
	// comparison takes none.
	ParamIndex int
	Function   Function

	OwnerEntityType    reflect.Type
	NestedPropertyName string
	NestedPropertyType reflect.Type
	// NestedLabels, RelationshipType and RelationshipDirection describe how to
	// reach the nested node from the owner.
	NestedLabels          []string
	RelationshipType      string
	RelationshipDirection ogm.Direction
}

// IsNested reports whether the filter applies to a related node.
func (f Filter) IsNested() bool {
	return f.NestedPropertyName != ""
}
