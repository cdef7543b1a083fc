package derived

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
)

// Subject is what a derived method does with the matched nodes.
type Subject int

const (
	SubjectFind Subject = iota
	SubjectCount
	SubjectExists
	SubjectDelete
)

func (s Subject) String() string {
	switch s {
	case SubjectCount:
		return "count"
	case SubjectExists:
		return "exists"
	case SubjectDelete:
		return "delete"
	default:
		return "find"
	}
}

var (
	prefixPattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)`)
	limitPattern  = regexp.MustCompile(`(First|Top)(\d*)`)
)

// PartTree is a parsed derived method name.
type PartTree struct {
	Subject  Subject
	Distinct bool
	// Limit is the First/Top bound, 0 when absent.
	Limit int
	// OrParts holds the predicate as a disjunction of conjunctions.
	OrParts [][]Part
	Sort    paging.Sort
	Entity  *ogm.Entity
}

// Parts returns every part in declaration order.
func (t *PartTree) Parts() []Part {
	var out []Part
	for _, and := range t.OrParts {
		out = append(out, and...)
	}
	return out
}

// NumberOfArguments is the number of value arguments the method takes.
func (t *PartTree) NumberOfArguments() int {
	n := 0
	for _, p := range t.Parts() {
		n += p.NumberOfArguments()
	}
	return n
}

// Parse reads a method name such as findByNameContainingIgnoreCaseOrderByNameAsc.
func Parse(name string, entity *ogm.Entity) (*PartTree, error) {
	op := "derive query " + name
	prefix := prefixPattern.FindString(name)
	if prefix == "" {
		return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, op, "method name must start with find, count, exists or delete")
	}

	tree := &PartTree{Entity: entity}
	switch prefix {
	case "count":
		tree.Subject = SubjectCount
	case "exists":
		tree.Subject = SubjectExists
	case "delete", "remove":
		tree.Subject = SubjectDelete
	}

	rest := name[len(prefix):]
	subject, predicate := rest, ""
	if i := keywordIndex(rest, "By"); i >= 0 {
		subject, predicate = rest[:i], rest[i+2:]
	}

	tree.Distinct = strings.Contains(subject, "Distinct")
	if m := limitPattern.FindStringSubmatch(subject); m != nil {
		if tree.Subject != SubjectFind {
			return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, op, "%s%s only applies to find methods", m[1], m[2])
		}
		tree.Limit = 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, op, "invalid limit %q", m[2])
			}
			tree.Limit = n
		}
	}

	if i := keywordIndex(predicate, "OrderBy"); i >= 0 {
		sort, err := parseOrderBy(entity, predicate[i+len("OrderBy"):])
		if err != nil {
			return nil, dataaccess.Wrap(dataaccess.KindInvalidUsage, op, err)
		}
		tree.Sort = sort
		predicate = predicate[:i]
	}

	allIgnoreCase := false
	for _, suffix := range []string{"AllIgnoringCase", "AllIgnoreCase"} {
		if trimmed, ok := strings.CutSuffix(predicate, suffix); ok {
			predicate = trimmed
			allIgnoreCase = true
			break
		}
	}

	if predicate == "" {
		return tree, nil
	}

	index := 0
	for _, orSource := range splitKeyword(predicate, "Or") {
		var and []Part
		for _, source := range splitKeyword(orSource, "And") {
			if source == "" {
				return nil, dataaccess.Newf(dataaccess.KindInvalidUsage, op, "empty predicate part")
			}
			part, err := parsePart(entity, source, allIgnoreCase)
			if err != nil {
				return nil, dataaccess.Wrap(dataaccess.KindInvalidUsage, op, err)
			}
			part.ParamIndex = index
			index += part.NumberOfArguments()
			and = append(and, part)
		}
		tree.OrParts = append(tree.OrParts, and)
	}
	return tree, nil
}

// parseOrderBy reads NameAscEmailDesc.
func parseOrderBy(entity *ogm.Entity, source string) (paging.Sort, error) {
	var sort paging.Sort
	for source != "" {
		end, dir, next := len(source), paging.Asc, len(source)
		for i := 1; i < len(source); i++ {
			for _, candidate := range []struct {
				word string
				dir  paging.Direction
			}{{"Asc", paging.Asc}, {"Desc", paging.Desc}} {
				if !strings.HasPrefix(source[i:], candidate.word) {
					continue
				}
				after := i + len(candidate.word)
				if after == len(source) || startsUpper(source[after:]) {
					end, dir, next = i, candidate.dir, after
					break
				}
			}
			if end != len(source) {
				break
			}
		}
		path, err := ResolvePath(entity, source[:end])
		if err != nil {
			return paging.Sort{}, err
		}
		if path.HasNext() {
			return paging.Sort{}, dataaccess.Newf(dataaccess.KindInvalidUsage, "derive query", "cannot order by nested property %s", path)
		}
		sort.Orders = append(sort.Orders, paging.Order{Property: path.Segment, Direction: dir})
		source = source[next:]
	}
	return sort, nil
}

// keywordIndex finds kw where it starts a new camel-case word and is followed
// by an upper-case letter.
func keywordIndex(s, kw string) int {
	for i := 0; i+len(kw) <= len(s); i++ {
		if !strings.HasPrefix(s[i:], kw) {
			continue
		}
		if i+len(kw) < len(s) && startsUpper(s[i+len(kw):]) {
			return i
		}
	}
	return -1
}

// splitKeyword splits s on the camel-case word kw, e.g. NameOrEmail on Or.
func splitKeyword(s, kw string) []string {
	var out []string
	start := 0
	for i := 1; i+len(kw) < len(s); i++ {
		if !strings.HasPrefix(s[i:], kw) || !startsUpper(s[i+len(kw):]) {
			continue
		}
		out = append(out, s[start:i])
		start = i + len(kw)
		i = start
	}
	return append(out, s[start:])
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
