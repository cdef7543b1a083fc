package derived

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/query"
)

const nodeVariable = "n"

// Statement is the Cypher generated for a method name.
type Statement struct {
	Query string
	// CountQuery counts every match, ignoring sort and limit.
	CountQuery string
}

// Cypher renders tree and its filters. Parameters are positional: $0, $1, ...
func Cypher(tree *PartTree, filters []Filter) Statement {
	var match strings.Builder
	fmt.Fprintf(&match, "MATCH (%s%s)", nodeVariable, tree.Entity.LabelExpr())

	nested := map[string]string{}
	for _, f := range filters {
		if !f.IsNested() {
			continue
		}
		if _, ok := nested[f.NestedPropertyName]; ok {
			continue
		}
		variable := "m" + strconv.Itoa(len(nested))
		nested[f.NestedPropertyName] = variable
		target := "(" + variable + ":" + strings.Join(f.NestedLabels, ":") + ")"
		fmt.Fprintf(&match, " MATCH %s", f.RelationshipDirection.Pattern("("+nodeVariable+")", ":"+f.RelationshipType, target))
	}

	if len(filters) > 0 {
		match.WriteString(" WHERE ")
		for i, f := range filters {
			if i > 0 {
				match.WriteString(" " + string(f.BooleanOperator) + " ")
			}
			variable := nodeVariable
			if f.IsNested() {
				variable = nested[f.NestedPropertyName]
			}
			match.WriteString(predicate(f, variable))
		}
	}

	base := match.String()
	distinct := tree.Distinct || len(nested) > 0
	countQuery := base + " RETURN count(DISTINCT " + nodeVariable + ")"

	var ret string
	switch tree.Subject {
	case SubjectCount:
		return Statement{Query: countQuery, CountQuery: countQuery}
	case SubjectExists:
		return Statement{Query: base + " RETURN count(" + nodeVariable + ") > 0", CountQuery: countQuery}
	case SubjectDelete:
		if distinct {
			return Statement{Query: base + " WITH DISTINCT " + nodeVariable + " DETACH DELETE " + nodeVariable, CountQuery: countQuery}
		}
		return Statement{Query: base + " DETACH DELETE " + nodeVariable, CountQuery: countQuery}
	default:
		ret = " RETURN " + nodeVariable
		if distinct {
			ret = " RETURN DISTINCT " + nodeVariable
		}
	}

	q := base + ret
	if tree.Sort.IsSorted() {
		orders := make([]string, 0, len(tree.Sort.Orders))
		for _, o := range tree.Sort.Orders {
			o.Property = nodeVariable + "." + o.Property
			orders = append(orders, o.String())
		}
		q += " ORDER BY " + strings.Join(orders, ", ")
	}
	if tree.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(tree.Limit)
	}
	return Statement{Query: q, CountQuery: countQuery}
}

func predicate(f Filter, variable string) string {
	property := variable + "." + f.PropertyName
	param := "$" + strconv.Itoa(f.ParamIndex)
	lhs, rhs := property, param
	if f.Function == IgnoreCaseFn {
		lhs, rhs = "toLower("+property+")", "toLower("+param+")"
	}

	var expr string
	switch f.Comparison {
	case Equals:
		expr = lhs + " = " + rhs
	case GreaterThanOp:
		expr = property + " > " + param
	case GreaterThanEqOp:
		expr = property + " >= " + param
	case LessThanOp:
		expr = property + " < " + param
	case LessThanEqOp:
		expr = property + " <= " + param
	case LikeOp:
		expr = property + " =~ ('(?i)' + replace(" + param + ", '*', '.*'))"
	case StartingWithOp:
		expr = lhs + " STARTS WITH " + rhs
	case EndingWithOp:
		expr = lhs + " ENDS WITH " + rhs
	case ContainingOp:
		if f.Function == CollectionFn {
			expr = param + " IN " + property
		} else {
			expr = lhs + " CONTAINS " + rhs
		}
	case InOp:
		expr = property + " IN " + param
	case IsNullOp:
		if f.Negated {
			return property + " IS NOT NULL"
		}
		return property + " IS NULL"
	case ExistsOp:
		expr = property + " IS NOT NULL"
	case IsTrueOp:
		expr = property + " = true"
	case IsFalseOp:
		expr = property + " = false"
	case MatchesOp:
		expr = property + " =~ " + param
	}
	if f.Negated {
		return "NOT(" + expr + ")"
	}
	return expr
}

// NewQuery derives the Cypher of method from its name and binds it to
// session. domain is the entity type the name refers to. method.Params lists
// only the special parameters (pageable, sort, projection); the value
// parameters the name asks for are prepended. method.Entity defaults to domain,
// or to int64 and bool for count and exists methods returning a single value.
func NewQuery(session query.Session, domain reflect.Type, method query.Method, opts ...query.Option) (*query.GraphRepositoryQuery, error) {
	op := "derive query " + method.Name
	if method.Query != "" {
		return nil, dataaccess.New(dataaccess.KindInvalidUsage, op, "derived methods take their query from the name")
	}
	for domain != nil && domain.Kind() == reflect.Pointer {
		domain = domain.Elem()
	}
	if domain == nil {
		return nil, dataaccess.New(dataaccess.KindInvalidUsage, op, "domain type is required")
	}
	meta, err := ogm.MetadataOf(domain)
	if err != nil {
		return nil, err
	}
	tree, err := Parse(method.Name, meta)
	if err != nil {
		return nil, err
	}

	for _, p := range method.Params {
		switch {
		case p.Role == query.RoleValue:
			return nil, dataaccess.New(dataaccess.KindInvalidUsage, op, "value parameters are derived from the name")
		case (p.Role == query.RoleSort || p.Role == query.RolePageable) && tree.Sort.IsSorted():
			return nil, dataaccess.New(dataaccess.KindInvalidUsage, op, "OrderBy cannot be combined with a sort or pageable parameter")
		case p.Role == query.RolePageable && tree.Limit > 0:
			return nil, dataaccess.New(dataaccess.KindInvalidUsage, op, "First/Top cannot be combined with a pageable parameter")
		}
	}

	filters, err := BuildFilters(tree)
	if err != nil {
		return nil, err
	}
	stmt := Cypher(tree, filters)

	params := make([]query.Param, 0, tree.NumberOfArguments()+len(method.Params))
	for range tree.NumberOfArguments() {
		params = append(params, query.Positional())
	}
	method.Params = append(params, method.Params...)
	method.Query = stmt.Query
	if method.IsPageQuery() {
		method.CountQuery = stmt.CountQuery
	}
	if method.Entity == nil && method.Returns != query.ReturnNothing && !method.ReturnsStatistics() {
		switch {
		case tree.Subject == SubjectCount && method.Returns == query.ReturnEntity:
			method.Entity = reflect.TypeFor[int64]()
		case tree.Subject == SubjectExists && method.Returns == query.ReturnEntity:
			method.Entity = reflect.TypeFor[bool]()
		default:
			method.Entity = domain
		}
	}

	return query.New(session, method, append(opts, query.WithSortVariable(nodeVariable))...)
}
