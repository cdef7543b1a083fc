package ogm

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/paging"
)

type person struct {
	ID      string
	Name    string     `graph:"name,omitempty"`
	Email   string     `graph:"emailAddress,omitempty"`
	Born    *time.Time `graph:"born"`
	Age     int
	Secret  string    `graph:"-"`
	Genres  []genre   `graph:"genres,rel=INTERESTED"`
	Friends []*person `graph:"friends,rel=FRIEND_OF,dir=UNDIRECTED"`
}

func (person) Labels() []string { return []string{"User", "Person"} }

type genre struct {
	ID   string
	Name string
}

type nameOnly struct {
	Name string
}

// idResponder hands out sequential element ids to CREATE statements and echoes
// the id of MATCH ... SET updates.
func idResponder() func(graph.ExecutedQuery) (graph.Result, error) {
	next := 0
	return func(q graph.ExecutedQuery) (graph.Result, error) {
		switch {
		case strings.HasPrefix(q.Query, "CREATE"):
			next++
			return graph.Result{Columns: []string{"id"}, Records: []graph.Record{{"id": fmt.Sprintf("4:db:%d", next)}}}, nil
		case strings.Contains(q.Query, "SET n = $props"):
			return graph.Result{Columns: []string{"id"}, Records: []graph.Record{{"id": q.Params["id"]}}}, nil
		}
		return graph.Result{}, nil
	}
}

func TestMetadataOf(t *testing.T) {
	meta, err := MetadataFor[person]()
	require.NoError(t, err)

	assert.Equal(t, []string{"User", "Person"}, meta.Labels)
	assert.Equal(t, ":User:Person", meta.LabelExpr())
	assert.Equal(t, "ID", meta.IDProperty().Field)

	email, ok := meta.Property("EmailAddress")
	require.True(t, ok)
	assert.Equal(t, "emailAddress", email.Name)

	age, ok := meta.Property("age")
	require.True(t, ok)
	assert.Equal(t, "Age", age.Field)

	_, ok = meta.Property("secret")
	assert.False(t, ok)

	rels := meta.Relationships()
	require.Len(t, rels, 2)
	assert.Equal(t, "INTERESTED", rels[0].Rel.Type)
	assert.Equal(t, Outgoing, rels[0].Rel.Direction)
	assert.True(t, rels[0].Rel.Many)
	assert.Equal(t, reflect.TypeFor[genre](), rels[0].Rel.Target)
	assert.Equal(t, Undirected, rels[1].Rel.Direction)
	assert.Equal(t, reflect.TypeFor[person](), rels[1].Rel.Target)

	g, err := MetadataOf(reflect.TypeFor[*genre]())
	require.NoError(t, err)
	assert.Equal(t, "genre", g.PrimaryLabel())
}

func TestMetadataRejectsTypesWithoutID(t *testing.T) {
	_, err := MetadataFor[nameOnly]()
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)

	_, err = MetadataOf(reflect.TypeFor[string]())
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
}

func TestLowerCamel(t *testing.T) {
	assert.Equal(t, "emailAddress", lowerCamel("EmailAddress"))
	assert.Equal(t, "id", lowerCamel("ID"))
	assert.Equal(t, "urlPath", lowerCamel("URLPath"))
	assert.Equal(t, "name", lowerCamel("name"))
}

func TestDirectionPattern(t *testing.T) {
	assert.Equal(t, "(a)-[r:KNOWS]->(b)", Outgoing.Pattern("(a)", "r:KNOWS", "(b)"))
	assert.Equal(t, "(a)<-[:KNOWS]-(b)", Incoming.Pattern("(a)", ":KNOWS", "(b)"))
	assert.Equal(t, "(a)-[:KNOWS]-(b)", Undirected.Pattern("(a)", ":KNOWS", "(b)"))
}

func TestEncodeSkipsIdentityRelationshipsAndEmptyValues(t *testing.T) {
	meta, err := MetadataFor[person]()
	require.NoError(t, err)

	born := time.Date(1990, 1, 2, 3, 4, 5, 0, time.UTC)
	props := Encode(meta, reflect.ValueOf(&person{ID: "x", Name: "Michal", Born: &born, Secret: "s", Genres: []genre{{Name: "Drama"}}}))
	assert.Equal(t, map[string]any{"name": "Michal", "born": "1990-01-02T03:04:05Z", "age": 0}, props)

	props = Encode(meta, reflect.ValueOf(person{}))
	assert.Equal(t, map[string]any{"age": 0}, props)
}

func TestIsWrite(t *testing.T) {
	assert.True(t, IsWrite("MATCH (n) DETACH DELETE n"))
	assert.True(t, IsWrite("match (n) set n.name = $name"))
	assert.True(t, IsWrite("MERGE (n:User {name: $0})"))
	assert.False(t, IsWrite("MATCH (n:User) RETURN n.settings AS settings"))
	assert.False(t, IsWrite("MATCH (n:User) RETURN n"))
}

func TestSaveCreatesNodeAndRelationships(t *testing.T) {
	client := graph.NewMemoryClient().WithResponder(idResponder())
	session := NewSession(client, nil)

	user := &person{Name: "Michal", Genres: []genre{{Name: "Drama"}}}
	require.NoError(t, session.Save(context.Background(), user))

	assert.Equal(t, "4:db:1", user.ID)
	assert.Equal(t, "4:db:2", user.Genres[0].ID)

	calls := client.WriteCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, "CREATE (n:User:Person) SET n = $props RETURN elementId(n) AS id", calls[0].Query)
	assert.Equal(t, map[string]any{"name": "Michal", "age": 0}, calls[0].Params["props"])
	assert.Equal(t, "CREATE (n:genre) SET n = $props RETURN elementId(n) AS id", calls[1].Query)
	assert.Equal(t, "MATCH (a)-[r:INTERESTED]->(b:genre) WHERE elementId(a) = $from AND NOT elementId(b) IN $targets DELETE r", calls[2].Query)
	assert.Equal(t, []string{"4:db:2"}, calls[2].Params["targets"])
	assert.Equal(t, "MATCH (a) WHERE elementId(a) = $from UNWIND $targets AS target MATCH (b) WHERE elementId(b) = target MERGE (a)-[:INTERESTED]->(b)", calls[3].Query)
	assert.Equal(t, "4:db:1", calls[3].Params["from"])
}

func TestSaveUpdatesExistingNodeAndPrunesRelationships(t *testing.T) {
	client := graph.NewMemoryClient().WithResponder(idResponder())
	session := NewSession(client, nil)

	user := &person{ID: "4:db:9", Name: "Adam", Genres: []genre{}}
	require.NoError(t, session.Save(context.Background(), user))

	calls := client.WriteCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "MATCH (n:User:Person) WHERE elementId(n) = $id SET n = $props RETURN elementId(n) AS id", calls[0].Query)
	assert.Equal(t, "4:db:9", calls[0].Params["id"])
	assert.Equal(t, []string{}, calls[1].Params["targets"])
}

func TestSaveMissingNodeIsRetrievalFailure(t *testing.T) {
	session := NewSession(graph.NewMemoryClient(), nil)
	err := session.Save(context.Background(), &person{ID: "4:db:404"})
	assert.ErrorIs(t, err, dataaccess.ErrDataRetrieval)
}

func TestSaveRejectsNonPointer(t *testing.T) {
	session := NewSession(graph.NewMemoryClient(), nil)
	err := session.Save(context.Background(), person{})
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
}

func TestLoadDecodesNodeAndRelatedNodes(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"n", "r0", "r1"},
		Records: []graph.Record{{
			"n": neo4j.Node{ElementId: "4:db:1", Labels: []string{"User", "Person"}, Props: map[string]any{
				"name": "Michal", "emailAddress": "michal@example.com", "age": int64(33), "born": "1990-01-02T03:04:05Z",
			}},
			"r0": []any{neo4j.Node{ElementId: "4:db:2", Labels: []string{"genre"}, Props: map[string]any{"name": "Drama"}}},
			"r1": []any{neo4j.Node{ElementId: "4:db:3", Labels: []string{"User", "Person"}, Props: map[string]any{"name": "Adam"}}},
		}},
	})
	session := NewSession(client, nil)

	got, found, err := session.Load(context.Background(), reflect.TypeFor[person](), "4:db:1")
	require.NoError(t, err)
	require.True(t, found)

	user := got.(*person)
	assert.Equal(t, "4:db:1", user.ID)
	assert.Equal(t, "Michal", user.Name)
	assert.Equal(t, "michal@example.com", user.Email)
	assert.Equal(t, 33, user.Age)
	require.NotNil(t, user.Born)
	assert.Equal(t, 1990, user.Born.Year())
	require.Len(t, user.Genres, 1)
	assert.Equal(t, genre{ID: "4:db:2", Name: "Drama"}, user.Genres[0])
	require.Len(t, user.Friends, 1)
	assert.Equal(t, "Adam", user.Friends[0].Name)

	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:User:Person) WHERE elementId(n) = $id"+
		" RETURN n, [(n)-[:INTERESTED]->(m0:genre) | m0] AS r0"+
		", [(n)-[:FRIEND_OF]-(m1:User:Person) | m1] AS r1", last.Query)
}

func TestLoadNotFound(t *testing.T) {
	session := NewSession(graph.NewMemoryClient(), nil)
	_, found, err := session.Load(context.Background(), reflect.TypeFor[genre](), "4:db:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadAllAppliesSortAndWindow(t *testing.T) {
	client := graph.NewMemoryClient()
	session := NewSession(client, nil)

	pageable := paging.PageRequest(1, 2, paging.Order{Property: "Name", Direction: paging.Desc})
	_, err := session.LoadAll(context.Background(), reflect.TypeFor[genre](), paging.AscBy("id"), pageable)
	require.NoError(t, err)

	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:genre) WITH n ORDER BY n.name DESC SKIP $skip LIMIT $limit RETURN n", last.Query)
	assert.Equal(t, map[string]any{"skip": 2, "limit": 2}, last.Params)

	_, err = session.LoadAll(context.Background(), reflect.TypeFor[genre](), paging.By("name) DETACH DELETE n //"), paging.Unpaged)
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
}

func TestLoadAllKeepsOrderWithRelationships(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"n", "r0", "r1"},
		Records: []graph.Record{
			{"n": neo4j.Node{ElementId: "4:db:2", Labels: []string{"User", "Person"}, Props: map[string]any{"name": "Zoe"}}},
			{"n": neo4j.Node{ElementId: "4:db:1", Labels: []string{"User", "Person"}, Props: map[string]any{"name": "Adam"}}},
		},
	})
	session := NewSession(client, nil)

	got, err := session.LoadAll(context.Background(), reflect.TypeFor[person](), paging.DescBy("name"), paging.PageRequest(0, 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Zoe", got[0].(*person).Name)
	assert.Equal(t, "Adam", got[1].(*person).Name)

	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:User:Person) WITH n ORDER BY n.name DESC SKIP $skip LIMIT $limit"+
		" RETURN n, [(n)-[:INTERESTED]->(m0:genre) | m0] AS r0"+
		", [(n)-[:FRIEND_OF]-(m1:User:Person) | m1] AS r1", last.Query)
	assert.NotContains(t, last.Query, "collect(")
}

func TestQueryRoutesByClauseUnlessForced(t *testing.T) {
	client := graph.NewMemoryClient()
	session := NewSession(client, nil)
	ctx := context.Background()

	_, err := session.Query(ctx, "MATCH (n:genre) RETURN n", nil)
	require.NoError(t, err)
	_, err = session.Query(ctx, "MATCH (n:genre) DETACH DELETE n", nil)
	require.NoError(t, err)
	_, err = session.QueryWrite(ctx, "CALL db.createLabel('Archived')", nil)
	require.NoError(t, err)
	_, err = session.Query(graph.WithWriteMode(ctx), "RETURN 1", nil)
	require.NoError(t, err)

	assert.Len(t, client.ReadCalls(), 1)
	assert.Len(t, client.WriteCalls(), 3)
	assert.True(t, IsWrite("merge (g:genre {name: $name})"))
	assert.False(t, IsWrite("MATCH (n:genre) RETURN n.created"))
}

func TestQueryForObjectCollapsesRowsOfTheSameNode(t *testing.T) {
	node := neo4j.Node{ElementId: "4:db:1", Labels: []string{"User", "Person"}, Props: map[string]any{"name": "Michal"}}
	other := neo4j.Node{ElementId: "4:db:2", Labels: []string{"genre"}, Props: map[string]any{"name": "Drama"}}
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"m", "n"},
		Records: []graph.Record{{"m": other, "n": node}, {"m": other, "n": node}},
	})
	session := NewSession(client, nil)

	got, found, err := session.QueryForObject(context.Background(), reflect.TypeFor[person](), "MATCH (n:User)-[r]-(m) RETURN m, n", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Michal", got.(person).Name)
}

func TestQueryForObjectRejectsSeveralRows(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{
		Columns: []string{"n"},
		Records: []graph.Record{
			{"n": neo4j.Node{ElementId: "4:db:1", Labels: []string{"genre"}}},
			{"n": neo4j.Node{ElementId: "4:db:2", Labels: []string{"genre"}}},
		},
	})
	session := NewSession(client, nil)

	_, _, err := session.QueryForObject(context.Background(), reflect.TypeFor[genre](), "MATCH (n:genre) RETURN n", nil)
	assert.ErrorIs(t, err, dataaccess.ErrIncorrectResultSize)
}

func TestQueryForListMapsScalarsMapsAndProjections(t *testing.T) {
	client := graph.NewMemoryClient()
	rows := graph.Result{
		Columns: []string{"name", "count"},
		Records: []graph.Record{{"name": "a", "count": int64(1)}, {"name": "b", "count": int64(2)}},
	}
	client.PushReadResult(rows)
	client.PushReadResult(rows)
	client.PushReadResult(rows)
	session := NewSession(client, nil)
	ctx := context.Background()

	names, err := session.QueryForList(ctx, reflect.TypeFor[string](), "MATCH (n) RETURN n.name AS name, count(*) AS count", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, names)

	maps, err := session.QueryForList(ctx, reflect.TypeFor[map[string]any](), "MATCH (n) RETURN n", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "b", "count": int64(2)}, maps[1])

	projected, err := session.QueryForList(ctx, reflect.TypeFor[*nameOnly](), "MATCH (n) RETURN n", nil)
	require.NoError(t, err)
	assert.Equal(t, &nameOnly{Name: "a"}, projected[0])
}

func TestQueryRoutesUpdatesToWriteTransactions(t *testing.T) {
	client := graph.NewMemoryClient()
	session := NewSession(client, nil)
	ctx := context.Background()

	_, err := session.Query(ctx, "MATCH (n:User) SET n.name = $name", map[string]any{"name": "x"})
	require.NoError(t, err)
	_, err = session.Query(ctx, "MATCH (n:User) RETURN n", nil)
	require.NoError(t, err)

	assert.Len(t, client.WriteCalls(), 1)
	assert.Len(t, client.ReadCalls(), 1)
}

func TestQueryTranslatesErrors(t *testing.T) {
	client := graph.NewMemoryClient().WithError(&neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad"})
	session := NewSession(client, nil)

	_, err := session.Query(context.Background(), "MATCH (n RETURN n", nil)
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
}

func TestResolveGraphID(t *testing.T) {
	session := NewSession(graph.NewMemoryClient(), nil)

	id, ok := session.ResolveGraphID(&person{ID: "4:db:1"})
	assert.True(t, ok)
	assert.Equal(t, "4:db:1", id)

	_, ok = session.ResolveGraphID(person{})
	assert.False(t, ok)
	_, ok = session.ResolveGraphID("Michal")
	assert.False(t, ok)
	_, ok = session.ResolveGraphID(time.Now())
	assert.False(t, ok)
	_, ok = session.ResolveGraphID((*person)(nil))
	assert.False(t, ok)
}

func TestCountExistsAndDelete(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{Columns: []string{"count"}, Records: []graph.Record{{"count": int64(3)}}})
	client.PushReadResult(graph.Result{Columns: []string{"exists"}, Records: []graph.Record{{"exists": true}}})
	client.PushWriteResult(graph.Result{Stats: graph.Stats{NodesDeleted: 1}})
	client.PushWriteResult(graph.Result{Stats: graph.Stats{NodesDeleted: 4}})
	session := NewSession(client, nil)
	ctx := context.Background()
	typ := reflect.TypeFor[person]()

	n, err := session.Count(ctx, typ)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	exists, err := session.Exists(ctx, typ, "4:db:1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, session.Delete(ctx, &person{ID: "4:db:1"}))
	last, _ := client.LastCall()
	assert.Equal(t, "MATCH (n:User:Person) WHERE elementId(n) = $id DETACH DELETE n", last.Query)

	deleted, err := session.DeleteAll(ctx, typ)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	err = session.Delete(ctx, &person{})
	assert.ErrorIs(t, err, dataaccess.ErrInvalidUsage)
}
