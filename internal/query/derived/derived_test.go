package derived

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
)

type genre struct {
	ID   string
	Name string
}

func (genre) Labels() []string { return []string{"Genre"} }

type member struct {
	ID        string
	Name      string
	Email     string `graph:"emailAddress"`
	Age       int
	Active    bool
	Born      time.Time
	Nicknames []string
	Genres    []genre   `graph:"genres,rel=INTERESTED"`
	Friends   []*member `graph:"friends,rel=FRIEND_OF,dir=undirected"`
}

func (member) Labels() []string { return []string{"User", "Person"} }

var memberType = reflect.TypeFor[member]()

func memberMeta(t *testing.T) *ogm.Entity {
	t.Helper()
	meta, err := ogm.MetadataOf(memberType)
	require.NoError(t, err)
	return meta
}

func derive(t *testing.T, name string) Statement {
	t.Helper()
	tree, err := Parse(name, memberMeta(t))
	require.NoError(t, err)
	filters, err := BuildFilters(tree)
	require.NoError(t, err)
	return Cypher(tree, filters)
}

func memberNode(id, name string, age int64) neo4j.Node {
	return neo4j.Node{
		ElementId: id,
		Labels:    []string{"User", "Person"},
		Props:     map[string]any{"name": name, "age": age},
	}
}

func TestParseSubjects(t *testing.T) {
	meta := memberMeta(t)

	tests := []struct {
		name     string
		subject  Subject
		distinct bool
		limit    int
		parts    int
	}{
		{"findByName", SubjectFind, false, 0, 1},
		{"readByName", SubjectFind, false, 0, 1},
		{"countByAge", SubjectCount, false, 0, 1},
		{"existsByEmail", SubjectExists, false, 0, 1},
		{"deleteByName", SubjectDelete, false, 0, 1},
		{"removeByNameAndAge", SubjectDelete, false, 0, 2},
		{"findDistinctByName", SubjectFind, true, 0, 1},
		{"findTopByName", SubjectFind, false, 1, 1},
		{"findFirst3ByName", SubjectFind, false, 3, 1},
		{"findAll", SubjectFind, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.name, meta)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, tree.Subject)
			assert.Equal(t, tt.distinct, tree.Distinct)
			assert.Equal(t, tt.limit, tree.Limit)
			assert.Len(t, tree.Parts(), tt.parts)
		})
	}
}

func TestParsePartKeywords(t *testing.T) {
	meta := memberMeta(t)

	tests := []struct {
		name       string
		typ        Type
		path       string
		ignoreCase bool
	}{
		{"findByName", SimpleProperty, "name", false},
		{"findByNameIs", SimpleProperty, "name", false},
		{"findByNameNot", NegatingSimpleProperty, "name", false},
		{"findByNameContaining", Containing, "name", false},
		{"findByNameNotContaining", NotContaining, "name", false},
		{"findByNameStartingWithIgnoreCase", StartingWith, "name", true},
		{"findByNameEndsWith", EndingWith, "name", false},
		{"findByNameIsNotLike", NotLike, "name", false},
		{"findByNameNotIn", NotIn, "name", false},
		{"findByNameMatchesRegex", Regex, "name", false},
		{"findByAgeGreaterThanEqual", GreaterThanEqual, "age", false},
		{"findByAgeLessThan", LessThan, "age", false},
		{"findByAgeBetween", Between, "age", false},
		{"findByEmailIsNull", IsNull, "emailAddress", false},
		{"findByEmailIsNotNull", IsNotNull, "emailAddress", false},
		{"findByActiveTrue", True, "active", false},
		{"findByActiveIsFalse", False, "active", false},
		{"findByBornBefore", Before, "born", false},
		{"findByBornAfter", After, "born", false},
		{"findByEmailExists", Exists, "emailAddress", false},
		{"findByGenresName", SimpleProperty, "genres.name", false},
		{"findByGenres_Name", SimpleProperty, "genres.name", false},
		{"findByFriendsNameIn", In, "friends.name", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.name, meta)
			require.NoError(t, err)
			parts := tree.Parts()
			require.Len(t, parts, 1)
			assert.Equal(t, tt.typ, parts[0].Type)
			assert.Equal(t, tt.path, parts[0].Property.String())
			assert.Equal(t, tt.ignoreCase, parts[0].IgnoreCase)
		})
	}
}

func TestParseOrAndAssignsParameterIndexes(t *testing.T) {
	tree, err := Parse("findByNameOrAgeBetweenAndEmail", memberMeta(t))
	require.NoError(t, err)

	require.Len(t, tree.OrParts, 2)
	require.Len(t, tree.OrParts[0], 1)
	require.Len(t, tree.OrParts[1], 2)
	assert.Equal(t, 0, tree.OrParts[0][0].ParamIndex)
	assert.Equal(t, 1, tree.OrParts[1][0].ParamIndex)
	assert.Equal(t, 3, tree.OrParts[1][1].ParamIndex)
	assert.Equal(t, 4, tree.NumberOfArguments())
}

func TestParseOrderByAndAllIgnoreCase(t *testing.T) {
	tree, err := Parse("findByNameAndAgeAllIgnoreCaseOrderByAgeDescNameAsc", memberMeta(t))
	require.NoError(t, err)

	parts := tree.Parts()
	require.Len(t, parts, 2)
	assert.True(t, parts[0].IgnoreCase)
	assert.False(t, parts[1].IgnoreCase, "only string properties ignore case")
	assert.Equal(t, "age DESC, name ASC", tree.Sort.Cypher())
}

func TestParseRejectsInvalidNames(t *testing.T) {
	meta := memberMeta(t)
	for _, name := range []string{
		"fetchByName",
		"findByUnknown",
		"findByAgeIgnoreCase",
		"countFirst3ByName",
		"findByNameOrderByGenresNameAsc",
		"findByFriendsGenresName",
		"findByFriends_Genres_Name",
		"findByNameAnd",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name, meta)
			require.Error(t, err)
			assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
		})
	}
}

func TestResolvePathStopsAfterOneRelationship(t *testing.T) {
	meta := memberMeta(t)

	path, err := ResolvePath(meta, "FriendsName")
	require.NoError(t, err)
	assert.Equal(t, "friends.name", path.String())

	_, err = ResolvePath(meta, "FriendsGenresName")
	require.Error(t, err)
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
	assert.ErrorContains(t, err, "friends.genres.name")
}

func TestBuildFiltersJoinsAndDescribesNestedProperties(t *testing.T) {
	tree, err := Parse("findByNameOrGenresNameAndAge", memberMeta(t))
	require.NoError(t, err)

	filters, err := BuildFilters(tree)
	require.NoError(t, err)
	require.Len(t, filters, 3)

	assert.Equal(t, None, filters[0].BooleanOperator)
	assert.False(t, filters[0].IsNested())

	nested := filters[1]
	assert.Equal(t, Or, nested.BooleanOperator)
	assert.Equal(t, "name", nested.PropertyName)
	assert.Equal(t, "genres", nested.NestedPropertyName)
	assert.Equal(t, memberType, nested.OwnerEntityType)
	assert.Equal(t, reflect.TypeFor[genre](), nested.NestedPropertyType)
	assert.Equal(t, "INTERESTED", nested.RelationshipType)
	assert.Equal(t, ogm.Outgoing, nested.RelationshipDirection)
	assert.Equal(t, []string{"Genre"}, nested.NestedLabels)
	assert.Equal(t, 1, nested.ParamIndex)

	assert.Equal(t, And, filters[2].BooleanOperator)
	assert.Equal(t, 2, filters[2].ParamIndex)
}

func TestBetweenBuildsTwoFilters(t *testing.T) {
	tree, err := Parse("findByAgeBetween", memberMeta(t))
	require.NoError(t, err)
	filters, err := BuildFilters(tree)
	require.NoError(t, err)

	require.Len(t, filters, 2)
	assert.Equal(t, GreaterThanEqOp, filters[0].Comparison)
	assert.Equal(t, 0, filters[0].ParamIndex)
	assert.Equal(t, LessThanEqOp, filters[1].Comparison)
	assert.Equal(t, 1, filters[1].ParamIndex)
	assert.Equal(t, And, filters[1].BooleanOperator)
}

func TestCypher(t *testing.T) {
	const match = "MATCH (n:User:Person)"

	tests := []struct {
		name string
		want string
	}{
		{"findByName", match + " WHERE n.name = $0 RETURN n"},
		{"findByNameIgnoreCase", match + " WHERE toLower(n.name) = toLower($0) RETURN n"},
		{"findByNameOrEmailAndAge", match + " WHERE n.name = $0 OR n.emailAddress = $1 AND n.age = $2 RETURN n"},
		{"findByAgeBetween", match + " WHERE n.age >= $0 AND n.age <= $1 RETURN n"},
		{"findByEmailIsNotNull", match + " WHERE n.emailAddress IS NOT NULL RETURN n"},
		{"findByEmailIsNull", match + " WHERE n.emailAddress IS NULL RETURN n"},
		{"findByNameNot", match + " WHERE NOT(n.name = $0) RETURN n"},
		{"findByNameNotContaining", match + " WHERE NOT(n.name CONTAINS $0) RETURN n"},
		{"findByNicknamesContaining", match + " WHERE $0 IN n.nicknames RETURN n"},
		{"findByNameLike", match + " WHERE n.name =~ ('(?i)' + replace($0, '*', '.*')) RETURN n"},
		{"findByNameNotIn", match + " WHERE NOT(n.name IN $0) RETURN n"},
		{"findByActiveFalse", match + " WHERE n.active = false RETURN n"},
		{"findByNameMatchesRegex", match + " WHERE n.name =~ $0 RETURN n"},
		{"findByBornAfter", match + " WHERE n.born > $0 RETURN n"},
		{"findByNameStartingWithIgnoreCase", match + " WHERE toLower(n.name) STARTS WITH toLower($0) RETURN n"},
		{"findByGenresName", match + " MATCH (n)-[:INTERESTED]->(m0:Genre) WHERE m0.name = $0 RETURN DISTINCT n"},
		{"findByFriendsNameAndName", match + " MATCH (n)-[:FRIEND_OF]-(m0:User:Person) WHERE m0.name = $0 AND n.name = $1 RETURN DISTINCT n"},
		{"findDistinctByName", match + " WHERE n.name = $0 RETURN DISTINCT n"},
		{"findFirst2ByNameOrderByAgeDescNameAsc", match + " WHERE n.name = $0 RETURN n ORDER BY n.age DESC, n.name ASC LIMIT 2"},
		{"findAllByOrderByNameAsc", match + " RETURN n ORDER BY n.name ASC"},
		{"countByAgeGreaterThan", match + " WHERE n.age > $0 RETURN count(DISTINCT n)"},
		{"existsByEmail", match + " WHERE n.emailAddress = $0 RETURN count(n) > 0"},
		{"deleteByName", match + " WHERE n.name = $0 DETACH DELETE n"},
		{"deleteByGenresName", match + " MATCH (n)-[:INTERESTED]->(m0:Genre) WHERE m0.name = $0 WITH DISTINCT n DETACH DELETE n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, derive(t, tt.name).Query)
		})
	}
}

func TestCypherCountQueryIgnoresSortAndLimit(t *testing.T) {
	stmt := derive(t, "findTop5ByNameOrderByAgeAsc")
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.name = $0 RETURN count(DISTINCT n)", stmt.CountQuery)
}

func TestNewQueryRunsCollectionMethod(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"n"},
		Records: []graph.Record{
			{"n": memberNode("4:db:1", "Michael", 30)},
			{"n": memberNode("4:db:2", "Michal", 41)},
		},
	})
	session := ogm.NewSession(client, nil)

	q, err := NewQuery(session, memberType, query.Method{Name: "findByNameContaining", Returns: query.ReturnCollection})
	require.NoError(t, err)

	members, err := query.List[*member](context.Background(), q, "Mich")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "4:db:1", members[0].ID)
	assert.Equal(t, 41, members[1].Age)

	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.name CONTAINS $0 RETURN n", last.Query)
	assert.Equal(t, map[string]any{"0": "Mich"}, last.Params)
}

func TestNewQueryPagesWithGeneratedCountQuery(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"n"},
		Records: []graph.Record{
			{"n": memberNode("4:db:3", "Ann", 20)},
			{"n": memberNode("4:db:4", "Bob", 22)},
		},
	})
	client.PushReadResult(graph.Result{
		Columns: []string{"count(DISTINCT n)"},
		Records: []graph.Record{{"count(DISTINCT n)": int64(7)}},
	})

	q, err := NewQuery(ogm.NewSession(client, nil), memberType, query.Method{
		Name:    "findByAgeGreaterThan",
		Returns: query.ReturnPage,
		Params:  []query.Param{query.PageableParam()},
	})
	require.NoError(t, err)

	page, err := query.PageOf[member](context.Background(), q, 18,
		paging.PageRequest(1, 2, paging.Order{Property: "name", Direction: paging.Asc}))
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.EqualValues(t, 7, page.Total)
	assert.Equal(t, 4, page.TotalPages())

	reads := client.ReadCalls()
	require.Len(t, reads, 2)
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.age > $0 RETURN n ORDER BY n.name ASC SKIP $sdnSkip LIMIT $sdnLimit", reads[0].Query)
	assert.Equal(t, map[string]any{"0": 18, query.SkipParam: 2, query.LimitParam: 2}, reads[0].Params)
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.age > $0 RETURN count(DISTINCT n)", reads[1].Query)
}

func TestNewQueryQualifiesDynamicSort(t *testing.T) {
	client := graph.NewMemoryClient()
	q, err := NewQuery(ogm.NewSession(client, nil), memberType, query.Method{
		Name:    "findByActiveTrue",
		Returns: query.ReturnCollection,
		Params:  []query.Param{query.SortParam()},
	})
	require.NoError(t, err)

	_, err = query.List[member](context.Background(), q, paging.DescBy("age"))
	require.NoError(t, err)

	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.active = true RETURN n ORDER BY n.age DESC", last.Query)
}

func TestNewQueryCountExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	client := graph.NewMemoryClient()
	session := ogm.NewSession(client, nil)

	count, err := NewQuery(session, memberType, query.Method{
		Name: "countByActiveTrue", Returns: query.ReturnEntity, Entity: reflect.TypeFor[int64](),
	})
	require.NoError(t, err)
	client.PushReadResult(graph.Result{
		Columns: []string{"count(DISTINCT n)"},
		Records: []graph.Record{{"count(DISTINCT n)": int64(4)}},
	})
	n, found, err := query.One[int64](ctx, count)
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 4, n)

	exists, err := NewQuery(session, memberType, query.Method{
		Name: "existsByEmail", Returns: query.ReturnEntity, Entity: reflect.TypeFor[bool](),
	})
	require.NoError(t, err)
	client.PushReadResult(graph.Result{
		Columns: []string{"count(n) > 0"},
		Records: []graph.Record{{"count(n) > 0": true}},
	})
	ok, _, err := query.One[bool](ctx, exists, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	del, err := NewQuery(session, memberType, query.Method{Name: "deleteByName", Returns: query.ReturnStatistics})
	require.NoError(t, err)
	client.PushWriteResult(graph.Result{Stats: graph.Stats{NodesDeleted: 2, ContainsUpdates: true}})
	stats, err := query.Stats(ctx, del, "Michael")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodesDeleted)

	writes := client.WriteCalls()
	require.Len(t, writes, 1)
	assert.Equal(t, "MATCH (n:User:Person) WHERE n.name = $0 DETACH DELETE n", writes[0].Query)
}

func TestNewQueryRejectsConflictingDeclarations(t *testing.T) {
	session := ogm.NewSession(graph.NewMemoryClient(), nil)

	tests := []struct {
		name   string
		domain reflect.Type
		method query.Method
	}{
		{"static and dynamic sort", memberType, query.Method{
			Name: "findByNameOrderByAgeAsc", Returns: query.ReturnCollection, Params: []query.Param{query.SortParam()},
		}},
		{"top with pageable", memberType, query.Method{
			Name: "findTop3ByName", Returns: query.ReturnPage, Params: []query.Param{query.PageableParam()},
		}},
		{"explicit value parameter", memberType, query.Method{
			Name: "findByName", Returns: query.ReturnCollection, Params: []query.Param{query.Named("name")},
		}},
		{"explicit query", memberType, query.Method{
			Name: "findByName", Returns: query.ReturnCollection, Query: "MATCH (n) RETURN n",
		}},
		{"missing domain", nil, query.Method{Name: "findByName", Returns: query.ReturnCollection}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuery(session, tt.domain, tt.method)
			require.Error(t, err)
			assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
		})
	}
}
