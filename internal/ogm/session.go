// Package ogm maps Go structs onto graph nodes and runs Cypher through a
// graph.Client on their behalf.
package ogm

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/paging"
)

var updatingClause = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET|DELETE|REMOVE|DETACH|DROP)\b`)

// IsWrite reports whether cypher contains an updating clause keyword. It only
// matches words: writing procedures such as db.createLabel are missed, and
// keywords inside string literals or property names like n.set count. Use
// QueryWrite or graph.WithWriteMode to force a write transaction.
func IsWrite(cypher string) bool {
	return updatingClause.MatchString(cypher)
}

// Session runs queries and entity operations against a graph client.
type Session struct {
	client graph.Client
	logger *slog.Logger
}

// NewSession wraps client. A nil logger discards output.
func NewSession(client graph.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{client: client, logger: logger.With("component", "ogm")}
}

// Client exposes the underlying graph client.
func (s *Session) Client() graph.Client {
	return s.client
}

// Query runs cypher and returns the raw result. Statements IsWrite accepts, and
// every statement under a ctx marked by graph.WithWriteMode, run in a write
// transaction.
func (s *Session) Query(ctx context.Context, cypher string, params map[string]any) (graph.Result, error) {
	write := IsWrite(cypher) || graph.WriteMode(ctx)
	s.logger.DebugContext(ctx, "running cypher", "query", cypher, "params", len(params), "write", write)
	var (
		res graph.Result
		err error
	)
	if write {
		res, err = s.client.ExecuteWrite(ctx, cypher, params)
	} else {
		res, err = s.client.ExecuteRead(ctx, cypher, params)
	}
	if err != nil {
		return graph.Result{}, dataaccess.Translate("query", err)
	}
	return res, nil
}

// QueryWrite runs cypher in a write transaction.
func (s *Session) QueryWrite(ctx context.Context, cypher string, params map[string]any) (graph.Result, error) {
	return s.Query(graph.WithWriteMode(ctx), cypher, params)
}

// QueryForList runs cypher and maps every record onto a value of type t.
// Entity rows that resolve to the same node are returned once.
func (s *Session) QueryForList(ctx context.Context, t reflect.Type, cypher string, params map[string]any) ([]any, error) {
	res, err := s.Query(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return mapRecords(t, res)
}

// QueryForObject runs cypher and maps the single resulting row. found is false
// when there are no rows; more than one distinct row is an error.
func (s *Session) QueryForObject(ctx context.Context, t reflect.Type, cypher string, params map[string]any) (any, bool, error) {
	items, err := s.QueryForList(ctx, t, cypher, params)
	if err != nil {
		return nil, false, err
	}
	switch len(items) {
	case 0:
		return nil, false, nil
	case 1:
		return items[0], true, nil
	default:
		return nil, false, dataaccess.Newf(dataaccess.KindIncorrectResultSize, "query for object",
			"expected at most 1 result, got %d", len(items))
	}
}

func mapRecords(t reflect.Type, res graph.Result) ([]any, error) {
	out := make([]any, 0, len(res.Records))
	seen := make(map[string]struct{})

	ptr := t.Kind() == reflect.Pointer
	base := t
	if ptr {
		base = t.Elem()
	}

	for _, rec := range res.Records {
		target := reflect.New(base).Elem()
		key, err := decodeRecord(rec, res.Columns, target)
		if err != nil {
			return nil, dataaccess.Wrap(dataaccess.KindDataRetrieval, "map "+base.String(), err)
		}
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		if ptr {
			out = append(out, target.Addr().Interface())
		} else {
			out = append(out, target.Interface())
		}
	}
	return out, nil
}

// ResolveGraphID returns the element id of a persisted entity. Values that are
// not entities, or entities without an id, yield false.
func (s *Session) ResolveGraphID(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	meta, err := MetadataOf(rv.Type())
	if err != nil {
		return "", false
	}
	id := rv.FieldByIndex(meta.IDProperty().Index).String()
	return id, id != ""
}

// Save creates or updates entity, which must be a pointer to a struct. New
// entities get their element id assigned. Relationship fields that are not nil
// are synchronised one level deep: related entities are saved without their own
// relationships and relationships of that type no longer listed are removed.
func (s *Session) Save(ctx context.Context, entity any) error {
	return s.save(ctx, entity, true)
}

func (s *Session) save(ctx context.Context, entity any, withRelationships bool) error {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, "save", "expected a pointer to a struct, got %T", entity)
	}
	meta, err := MetadataOf(rv.Type())
	if err != nil {
		return err
	}

	elem := rv.Elem()
	idField := elem.FieldByIndex(meta.IDProperty().Index)
	props := Encode(meta, elem)

	var cypher string
	params := map[string]any{"props": props}
	if id := idField.String(); id == "" {
		cypher = fmt.Sprintf("CREATE (n%s) SET n = $props RETURN elementId(n) AS id", meta.LabelExpr())
	} else {
		cypher = fmt.Sprintf("MATCH (n%s) WHERE elementId(n) = $id SET n = $props RETURN elementId(n) AS id", meta.LabelExpr())
		params["id"] = id
	}

	res, err := s.client.ExecuteWrite(ctx, cypher, params)
	if err != nil {
		return dataaccess.Translate("save "+meta.Name(), err)
	}
	v, ok := res.FirstValue()
	if !ok {
		return dataaccess.Newf(dataaccess.KindDataRetrieval, "save "+meta.Name(), "no %s with id %s", meta.Name(), idField.String())
	}
	idField.SetString(graph.ToString(v))

	if !withRelationships {
		return nil
	}
	for _, rel := range meta.Relationships() {
		field := elem.FieldByIndex(rel.Index)
		if isNil(field) {
			continue
		}
		if err := s.saveRelationship(ctx, meta, idField.String(), rel, field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) saveRelationship(ctx context.Context, meta *Entity, fromID string, rel Property, field reflect.Value) error {
	targets := []string{}
	each := func(v reflect.Value) error {
		if v.Kind() != reflect.Pointer {
			if !v.CanAddr() {
				return dataaccess.Newf(dataaccess.KindInvalidUsage, "save "+meta.Name(), "relationship %s is not addressable", rel.Field)
			}
			v = v.Addr()
		}
		if v.IsNil() {
			return nil
		}
		if err := s.save(ctx, v.Interface(), false); err != nil {
			return err
		}
		id, _ := s.ResolveGraphID(v.Interface())
		targets = append(targets, id)
		return nil
	}

	if rel.Rel.Many {
		for i := 0; i < field.Len(); i++ {
			if err := each(field.Index(i)); err != nil {
				return err
			}
		}
	} else if err := each(field); err != nil {
		return err
	}

	target, err := MetadataOf(rel.Rel.Target)
	if err != nil {
		return err
	}
	params := map[string]any{"from": fromID, "targets": targets}

	prune := fmt.Sprintf("MATCH %s WHERE elementId(a) = $from AND NOT elementId(b) IN $targets DELETE r",
		rel.Rel.Direction.Pattern("(a)", "r:"+rel.Rel.Type, "(b"+target.LabelExpr()+")"))
	if _, err := s.client.ExecuteWrite(ctx, prune, params); err != nil {
		return dataaccess.Translate("save "+meta.Name()+"."+rel.Field, err)
	}
	if len(targets) == 0 {
		return nil
	}

	// undirected relationships are stored outgoing
	dir := rel.Rel.Direction
	if dir == Undirected {
		dir = Outgoing
	}
	link := fmt.Sprintf("MATCH (a) WHERE elementId(a) = $from UNWIND $targets AS target MATCH (b) WHERE elementId(b) = target MERGE %s",
		dir.Pattern("(a)", ":"+rel.Rel.Type, "(b)"))
	if _, err := s.client.ExecuteWrite(ctx, link, params); err != nil {
		return dataaccess.Translate("save "+meta.Name()+"."+rel.Field, err)
	}
	return nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Load fetches the entity of type t with the given element id, together with
// its directly related entities. Nodes that do not carry t's labels are not
// found.
func (s *Session) Load(ctx context.Context, t reflect.Type, id string) (any, bool, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return nil, false, err
	}
	match := fmt.Sprintf("MATCH (n%s) WHERE elementId(n) = $id", meta.LabelExpr())
	items, err := s.load(ctx, meta, match, map[string]any{"id": id})
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items[0], true, nil
}

// LoadAll fetches every entity of type t. The pageable's sort wins over sort
// when it has one; an unpaged pageable returns everything.
func (s *Session) LoadAll(ctx context.Context, t reflect.Type, sort paging.Sort, pageable paging.Pageable) ([]any, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return nil, err
	}
	if pageable.Sort.IsSorted() {
		sort = pageable.Sort
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n%s)", meta.LabelExpr())
	params := map[string]any{}
	if sort.IsSorted() || pageable.IsPaged() {
		b.WriteString(" WITH n")
	}
	if sort.IsSorted() {
		clause, err := orderBy(meta, "n", sort)
		if err != nil {
			return nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(clause)
	}
	if pageable.IsPaged() {
		b.WriteString(" SKIP $skip LIMIT $limit")
		params["skip"] = pageable.Offset()
		params["limit"] = pageable.Size
	}
	return s.load(ctx, meta, b.String(), params)
}

// LoadAllByID fetches the entities of type t among ids.
func (s *Session) LoadAllByID(ctx context.Context, t reflect.Type, ids []string) ([]any, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return nil, err
	}
	match := fmt.Sprintf("MATCH (n%s) WHERE elementId(n) IN $ids", meta.LabelExpr())
	return s.load(ctx, meta, match, map[string]any{"ids": ids})
}

func orderBy(meta *Entity, variable string, sort paging.Sort) (string, error) {
	parts := make([]string, 0, len(sort.Orders))
	for _, o := range sort.Orders {
		name := o.Property
		if p, ok := meta.Property(o.Property); ok && !p.IsRelationship() {
			name = p.Name
		}
		if !identifier.MatchString(name) {
			return "", dataaccess.Newf(dataaccess.KindInvalidUsage, "sort "+meta.Name(), "invalid sort property %q", o.Property)
		}
		parts = append(parts, variable+"."+paging.Order{Property: name, Direction: o.Direction}.String())
	}
	return strings.Join(parts, ", "), nil
}

// load returns n from match, which must bind it, with one pattern
// comprehension per relationship field, and decodes the rows. Comprehensions
// keep the row order match established.
func (s *Session) load(ctx context.Context, meta *Entity, match string, params map[string]any) ([]any, error) {
	rels := meta.Relationships()

	var b strings.Builder
	b.WriteString(match)
	b.WriteString(" RETURN n")
	for i, rel := range rels {
		target, err := MetadataOf(rel.Rel.Target)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, ", [%s | m%d] AS r%d",
			rel.Rel.Direction.Pattern("(n)", ":"+rel.Rel.Type, fmt.Sprintf("(m%d%s)", i, target.LabelExpr())), i, i)
	}

	res, err := s.client.ExecuteRead(ctx, b.String(), params)
	if err != nil {
		return nil, dataaccess.Translate("load "+meta.Name(), err)
	}

	out := make([]any, 0, len(res.Records))
	for _, rec := range res.Records {
		target := reflect.New(meta.Type).Elem()
		node, ok := entityNode(meta, graph.Record{"n": rec["n"]}, []string{"n"})
		if !ok {
			continue
		}
		if err := decodeNode(meta, node, target); err != nil {
			return nil, dataaccess.Wrap(dataaccess.KindDataRetrieval, "load "+meta.Name(), err)
		}
		for i, rel := range rels {
			related, _ := rec[fmt.Sprintf("r%d", i)].([]any)
			if err := decodeRelated(rel, target.FieldByIndex(rel.Index), related); err != nil {
				return nil, dataaccess.Wrap(dataaccess.KindDataRetrieval, "load "+meta.Name()+"."+rel.Field, err)
			}
		}
		out = append(out, target.Addr().Interface())
	}
	return out, nil
}

// Delete removes a persisted entity and its relationships.
func (s *Session) Delete(ctx context.Context, entity any) error {
	id, ok := s.ResolveGraphID(entity)
	if !ok {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, "delete", "%T is not a persisted entity", entity)
	}
	_, err := s.DeleteByID(ctx, reflect.TypeOf(entity), id)
	return err
}

// DeleteByID removes the entity of type t with the given id and reports
// whether a node was deleted.
func (s *Session) DeleteByID(ctx context.Context, t reflect.Type, id string) (bool, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return false, err
	}
	cypher := fmt.Sprintf("MATCH (n%s) WHERE elementId(n) = $id DETACH DELETE n", meta.LabelExpr())
	res, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return false, dataaccess.Translate("delete "+meta.Name(), err)
	}
	return res.Stats.NodesDeleted > 0, nil
}

// DeleteAll removes every entity of type t and returns how many were deleted.
func (s *Session) DeleteAll(ctx context.Context, t reflect.Type) (int, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return 0, err
	}
	cypher := fmt.Sprintf("MATCH (n%s) DETACH DELETE n", meta.LabelExpr())
	res, err := s.client.ExecuteWrite(ctx, cypher, nil)
	if err != nil {
		return 0, dataaccess.Translate("delete all "+meta.Name(), err)
	}
	return res.Stats.NodesDeleted, nil
}

// Count returns the number of entities of type t.
func (s *Session) Count(ctx context.Context, t reflect.Type) (int64, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return 0, err
	}
	cypher := fmt.Sprintf("MATCH (n%s) RETURN count(n) AS count", meta.LabelExpr())
	res, err := s.client.ExecuteRead(ctx, cypher, nil)
	if err != nil {
		return 0, dataaccess.Translate("count "+meta.Name(), err)
	}
	v, _ := res.FirstValue()
	n, _ := graph.ToInt64(v)
	return n, nil
}

// Exists reports whether an entity of type t with the given id exists.
func (s *Session) Exists(ctx context.Context, t reflect.Type, id string) (bool, error) {
	meta, err := MetadataOf(t)
	if err != nil {
		return false, err
	}
	cypher := fmt.Sprintf("MATCH (n%s) WHERE elementId(n) = $id RETURN count(n) > 0 AS exists", meta.LabelExpr())
	res, err := s.client.ExecuteRead(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return false, dataaccess.Translate("exists "+meta.Name(), err)
	}
	v, _ := res.FirstValue()
	exists, _ := v.(bool)
	return exists, nil
}
