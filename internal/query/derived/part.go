package derived

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/ogm"
)

// Type is the comparison a method name part asks for.
type Type int

const (
	SimpleProperty Type = iota
	NegatingSimpleProperty
	Between
	IsNotNull
	IsNull
	LessThan
	LessThanEqual
	GreaterThan
	GreaterThanEqual
	Before
	After
	NotLike
	Like
	StartingWith
	EndingWith
	NotContaining
	Containing
	NotIn
	In
	Regex
	Exists
	True
	False
)

var typeNames = [...]string{
	SimpleProperty:         "SIMPLE_PROPERTY",
	NegatingSimpleProperty: "NEGATING_SIMPLE_PROPERTY",
	Between:                "BETWEEN",
	IsNotNull:              "IS_NOT_NULL",
	IsNull:                 "IS_NULL",
	LessThan:               "LESS_THAN",
	LessThanEqual:          "LESS_THAN_EQUAL",
	GreaterThan:            "GREATER_THAN",
	GreaterThanEqual:       "GREATER_THAN_EQUAL",
	Before:                 "BEFORE",
	After:                  "AFTER",
	NotLike:                "NOT_LIKE",
	Like:                   "LIKE",
	StartingWith:           "STARTING_WITH",
	EndingWith:             "ENDING_WITH",
	NotContaining:          "NOT_CONTAINING",
	Containing:             "CONTAINING",
	NotIn:                  "NOT_IN",
	In:                     "IN",
	Regex:                  "REGEX",
	Exists:                 "EXISTS",
	True:                   "TRUE",
	False:                  "FALSE",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// NumberOfArguments is how many method arguments the part consumes.
func (t Type) NumberOfArguments() int {
	switch t {
	case Between:
		return 2
	case IsNull, IsNotNull, Exists, True, False:
		return 0
	default:
		return 1
	}
}

// keywords are matched against the end of a part, longest first.
var keywords = []struct {
	word string
	typ  Type
}{
	{"IsGreaterThanEqual", GreaterThanEqual},
	{"GreaterThanEqual", GreaterThanEqual},
	{"IsLessThanEqual", LessThanEqual},
	{"LessThanEqual", LessThanEqual},
	{"IsNotContaining", NotContaining},
	{"IsStartingWith", StartingWith},
	{"IsGreaterThan", GreaterThan},
	{"NotContaining", NotContaining},
	{"IsEndingWith", EndingWith},
	{"IsContaining", Containing},
	{"MatchesRegex", Regex},
	{"StartingWith", StartingWith},
	{"GreaterThan", GreaterThan},
	{"IsLessThan", LessThan},
	{"NotContains", NotContaining},
	{"EndingWith", EndingWith},
	{"StartsWith", StartingWith},
	{"Containing", Containing},
	{"IsNotNull", IsNotNull},
	{"IsBetween", Between},
	{"IsNotLike", NotLike},
	{"LessThan", LessThan},
	{"IsBefore", Before},
	{"EndsWith", EndingWith},
	{"Contains", Containing},
	{"IsAfter", After},
	{"Between", Between},
	{"NotNull", IsNotNull},
	{"NotLike", NotLike},
	{"Matches", Regex},
	{"IsFalse", False},
	{"IsNotIn", NotIn},
	{"IsNull", IsNull},
	{"Before", Before},
	{"IsLike", Like},
	{"Exists", Exists},
	{"IsTrue", True},
	{"Equals", SimpleProperty},
	{"After", After},
	{"Regex", Regex},
	{"False", False},
	{"NotIn", NotIn},
	{"IsNot", NegatingSimpleProperty},
	{"Null", IsNull},
	{"Like", Like},
	{"True", True},
	{"IsIn", In},
	{"Not", NegatingSimpleProperty},
	{"Is", SimpleProperty},
	{"In", In},
}

// PropertyPath is a dotted property reference resolved against entity
// metadata, e.g. genres.name on a User.
type PropertyPath struct {
	// Segment is the graph property name of this step.
	Segment string
	// OwningType is the entity the segment belongs to.
	OwningType reflect.Type
	// Type is the segment's type: the related entity for relationships, the
	// field type otherwise.
	Type     reflect.Type
	Property ogm.Property
	Next     *PropertyPath
}

// LeafProperty returns the last step of the path.
func (p *PropertyPath) LeafProperty() *PropertyPath {
	leaf := p
	for leaf.Next != nil {
		leaf = leaf.Next
	}
	return leaf
}

// HasNext reports whether the path continues past this step.
func (p *PropertyPath) HasNext() bool {
	return p.Next != nil
}

// String renders the path in dot notation.
func (p *PropertyPath) String() string {
	var parts []string
	for s := p; s != nil; s = s.Next {
		parts = append(parts, s.Segment)
	}
	return strings.Join(parts, ".")
}

// ResolvePath resolves a capitalised property expression such as GenresName
// against meta. Longer heads are preferred; an underscore forces a split.
// Paths may cross at most one relationship.
func ResolvePath(meta *ogm.Entity, source string) (*PropertyPath, error) {
	if path, ok := resolvePath(meta, source); ok {
		if path.HasNext() && path.Next.HasNext() {
			return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "derive query", "property %s crosses more than one relationship", path)
		}
		return path, nil
	}
	return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, "derive query", "no property %s found on %s", source, meta.Name())
}

func resolvePath(meta *ogm.Entity, source string) (*PropertyPath, bool) {
	if head, tail, ok := strings.Cut(source, "_"); ok {
		return resolveStep(meta, head, tail)
	}
	for i := len(source); i > 0; i-- {
		tail := source[i:]
		if tail != "" {
			r, _ := utf8.DecodeRuneInString(tail)
			if !unicode.IsUpper(r) {
				continue
			}
		}
		if path, ok := resolveStep(meta, source[:i], tail); ok {
			return path, true
		}
	}
	return nil, false
}

func resolveStep(meta *ogm.Entity, head, tail string) (*PropertyPath, bool) {
	prop, ok := meta.Property(head)
	if !ok || prop.ID {
		return nil, false
	}
	path := &PropertyPath{Segment: prop.Name, OwningType: meta.Type, Type: prop.Type, Property: prop}
	if prop.IsRelationship() {
		path.Type = prop.Rel.Target
	}
	if tail == "" {
		return path, true
	}
	if !prop.IsRelationship() {
		return nil, false
	}
	target, err := ogm.MetadataOf(prop.Rel.Target)
	if err != nil {
		return nil, false
	}
	next, ok := resolvePath(target, tail)
	if !ok {
		return nil, false
	}
	path.Next = next
	return path, true
}

// Part is one predicate of a derived method name, e.g. NameContainingIgnoreCase.
type Part struct {
	Source     string
	Type       Type
	Property   *PropertyPath
	IgnoreCase bool
	// ParamIndex is the position of the first method argument the part
	// consumes.
	ParamIndex int
}

// NumberOfArguments is how many method arguments the part consumes.
func (p Part) NumberOfArguments() int {
	return p.Type.NumberOfArguments()
}

func parsePart(meta *ogm.Entity, source string, allIgnoreCase bool) (Part, error) {
	part := Part{Source: source, Type: SimpleProperty}
	expr := source

	for _, suffix := range []string{"IgnoringCase", "IgnoreCase"} {
		if trimmed, ok := strings.CutSuffix(expr, suffix); ok && trimmed != "" {
			expr = trimmed
			part.IgnoreCase = true
			break
		}
	}

	for _, kw := range keywords {
		if trimmed, ok := strings.CutSuffix(expr, kw.word); ok && trimmed != "" {
			// only accept the keyword when what remains still resolves
			if _, resolved := resolvePath(meta, trimmed); resolved {
				expr = trimmed
				part.Type = kw.typ
				break
			}
		}
	}

	path, err := ResolvePath(meta, expr)
	if err != nil {
		return Part{}, err
	}
	part.Property = path

	if allIgnoreCase && isString(path.LeafProperty().Type) {
		part.IgnoreCase = true
	}
	if part.IgnoreCase && !isString(path.LeafProperty().Type) {
		return Part{}, dataaccess.Newf(dataaccess.KindInvalidUsage, "derive query", "IgnoreCase on non-string property %s", path)
	}
	return part, nil
}

func isString(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}
